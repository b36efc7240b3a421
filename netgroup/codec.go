package netgroup

import (
	"encoding/base64"
	"encoding/binary"
	"strconv"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/ChristianF88/pradix/group"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrMalformedEvent is returned for events that do not decode to a message.
var ErrMalformedEvent = errors.New("malformed event")

// Event field names. Tag and scalar travel as decimal strings since JSON
// numbers lose precision above 2^53; values travel as little-endian bytes.
const (
	fieldTag    = "tag"
	fieldFrom   = "from"
	fieldKind   = "kind"
	fieldValues = "values"
	fieldScalar = "scalar"
	fieldReason = "reason"
)

func encodeEvent(m group.Message) map[string]interface{} {
	evt := map[string]interface{}{
		fieldTag:  strconv.FormatUint(m.Tag, 10),
		fieldFrom: m.From,
		fieldKind: int(m.Kind),
	}
	switch m.Kind {
	case group.KindValues:
		evt[fieldValues] = packValues(m.Values)
	case group.KindScalar:
		evt[fieldScalar] = strconv.FormatUint(m.Scalar, 10)
	case group.KindAbort:
		evt[fieldReason] = m.Reason
	}
	return evt
}

func decodeEvent(evt map[string]interface{}) (group.Message, error) {
	var m group.Message

	tag, ok := evt[fieldTag].(string)
	if !ok {
		return m, errors.Wrap(ErrMalformedEvent, "missing tag")
	}
	t, err := strconv.ParseUint(tag, 10, 64)
	if err != nil {
		return m, errors.Wrap(ErrMalformedEvent, err.Error())
	}
	m.Tag = t

	from, ok := evt[fieldFrom].(float64)
	if !ok {
		return m, errors.Wrap(ErrMalformedEvent, "missing sender")
	}
	m.From = int(from)

	kind, ok := evt[fieldKind].(float64)
	if !ok {
		return m, errors.Wrap(ErrMalformedEvent, "missing kind")
	}
	m.Kind = group.Kind(kind)

	switch m.Kind {
	case group.KindValues:
		packed, _ := evt[fieldValues].(string)
		if m.Values, err = unpackValues(packed); err != nil {
			return m, err
		}
	case group.KindScalar:
		s, ok := evt[fieldScalar].(string)
		if !ok {
			return m, errors.Wrap(ErrMalformedEvent, "missing scalar")
		}
		if m.Scalar, err = strconv.ParseUint(s, 10, 64); err != nil {
			return m, errors.Wrap(ErrMalformedEvent, err.Error())
		}
	case group.KindAbort:
		m.Reason, _ = evt[fieldReason].(string)
	default:
		return m, errors.Wrapf(ErrMalformedEvent, "unknown kind %d", m.Kind)
	}
	return m, nil
}

func packValues(values []uint32) string {
	buf := make([]byte, 0, 4*len(values))
	for _, v := range values {
		buf = binary.LittleEndian.AppendUint32(buf, v)
	}
	return base64.StdEncoding.EncodeToString(buf)
}

func unpackValues(s string) ([]uint32, error) {
	buf, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(ErrMalformedEvent, err.Error())
	}
	if len(buf)%4 != 0 {
		return nil, errors.Wrapf(ErrMalformedEvent, "payload of %d bytes", len(buf))
	}
	values := make([]uint32, len(buf)/4)
	for i := range values {
		values[i] = binary.LittleEndian.Uint32(buf[4*i:])
	}
	return values, nil
}
