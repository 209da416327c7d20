package sniff

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
)

var errNestedArray = errors.New("nested arrays are not supported")

// unserializePHP decodes the output of PHP's serialize() for a flat array of scalars.
// Scalars are converted to their string form, null becomes an empty string.
func unserializePHP(data []byte) (map[string]string, error) {
	d := &phpDecoder{data: data}
	if d.peek() != 'a' {
		return nil, fmt.Errorf("expected serialized array at offset 0")
	}
	record, err := d.array()
	if err != nil {
		return nil, err
	}
	if d.pos != len(d.data) {
		return nil, fmt.Errorf("unexpected trailing data at offset %d", d.pos)
	}
	return record, nil
}

type phpDecoder struct {
	data []byte
	pos  int
}

func (d *phpDecoder) peek() byte {
	if d.pos >= len(d.data) {
		return 0
	}
	return d.data[d.pos]
}

func (d *phpDecoder) expect(s string) error {
	if !bytes.HasPrefix(d.data[d.pos:], []byte(s)) {
		return fmt.Errorf("expected %q at offset %d", s, d.pos)
	}
	d.pos += len(s)
	return nil
}

// until returns the bytes up to the delimiter and moves past it
func (d *phpDecoder) until(delim byte) (string, error) {
	idx := bytes.IndexByte(d.data[d.pos:], delim)
	if idx < 0 {
		return "", fmt.Errorf("expected %q after offset %d", delim, d.pos)
	}
	s := string(d.data[d.pos : d.pos+idx])
	d.pos += idx + 1
	return s, nil
}

func (d *phpDecoder) array() (map[string]string, error) {
	err := d.expect("a:")
	if err != nil {
		return nil, err
	}
	countStr, err := d.until(':')
	if err != nil {
		return nil, err
	}
	count, err := strconv.Atoi(countStr)
	if err != nil || count < 0 {
		return nil, fmt.Errorf("invalid array length %q", countStr)
	}
	err = d.expect("{")
	if err != nil {
		return nil, err
	}

	// every pair takes at least eight bytes, the count alone does not size the map
	record := make(map[string]string, min(count, len(d.data)/8))
	for i := 0; i < count; i++ {
		key, err := d.scalar()
		if err != nil {
			return nil, fmt.Errorf("array key %d: %w", i, err)
		}
		value, err := d.scalar()
		if err != nil {
			return nil, fmt.Errorf("array value %q: %w", key, err)
		}
		record[key] = value
	}
	return record, d.expect("}")
}

func (d *phpDecoder) scalar() (string, error) {
	switch d.peek() {
	case 's':
		err := d.expect("s:")
		if err != nil {
			return "", err
		}
		lengthStr, err := d.until(':')
		if err != nil {
			return "", err
		}
		length, err := strconv.Atoi(lengthStr)
		if err != nil || length < 0 {
			return "", fmt.Errorf("invalid string length %q", lengthStr)
		}
		err = d.expect(`"`)
		if err != nil {
			return "", err
		}
		if length > len(d.data)-d.pos {
			return "", fmt.Errorf("string of length %d exceeds data", length)
		}
		s := string(d.data[d.pos : d.pos+length])
		d.pos += length
		return s, d.expect(`";`)
	case 'i', 'd':
		err := d.expect(string(d.peek()) + ":")
		if err != nil {
			return "", err
		}
		return d.until(';')
	case 'b':
		err := d.expect("b:")
		if err != nil {
			return "", err
		}
		v, err := d.until(';')
		if err != nil {
			return "", err
		}
		return strconv.FormatBool(v == "1"), nil
	case 'N':
		return "", d.expect("N;")
	case 'a':
		return "", errNestedArray
	default:
		return "", fmt.Errorf("unsupported type %q at offset %d", d.peek(), d.pos)
	}
}
