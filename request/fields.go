package request

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/metal-stack/clientdir/addr"
)

// Error is a decode failure. Field is empty when the document as a
// whole could not be parsed.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	if e.Field == "" {
		return "malformed request: " + e.Reason
	}
	return fmt.Sprintf("malformed request: field %q: %s", e.Field, e.Reason)
}

func fieldErr(field, format string, args ...interface{}) error {
	return &Error{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// document is one parsed request object. Numbers are kept as
// json.Number so integer fields can be range checked exactly.
type document map[string]interface{}

func parseDocument(b []byte) (document, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, &Error{Reason: err.Error()}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, &Error{Reason: "trailing data after request object"}
	}
	doc, ok := v.(map[string]interface{})
	if !ok {
		return nil, &Error{Reason: "request is not a JSON object"}
	}
	return doc, nil
}

func (d document) value(field string) (interface{}, error) {
	v, ok := d[field]
	if !ok || v == nil {
		return nil, fieldErr(field, "missing")
	}
	return v, nil
}

func (d document) stringField(field string) (string, error) {
	v, err := d.value(field)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fieldErr(field, "want string, got %T", v)
	}
	return s, nil
}

// enumField returns the lowercased value of field, which must be one
// of allowed. Comparison is case-insensitive.
func (d document) enumField(field string, allowed ...string) (string, error) {
	s, err := d.stringField(field)
	if err != nil {
		return "", err
	}
	s = strings.ToLower(s)
	for _, a := range allowed {
		if s == a {
			return s, nil
		}
	}
	return "", fieldErr(field, "unknown value %q, want one of %s", s, strings.Join(allowed, ", "))
}

// uintField returns field as an unsigned integer that fits in bits.
// Fractions, exponents and negative numbers are rejected.
func (d document) uintField(field string, bits int) (uint64, error) {
	v, err := d.value(field)
	if err != nil {
		return 0, err
	}
	n, ok := v.(json.Number)
	if !ok {
		return 0, fieldErr(field, "want integer, got %T", v)
	}
	u, err := strconv.ParseUint(n.String(), 10, bits)
	if err != nil {
		return 0, fieldErr(field, "want unsigned %d-bit integer, got %s", bits, n)
	}
	return u, nil
}

func (d document) indexField(field string) (int, error) {
	u, err := d.uintField(field, strconv.IntSize-1)
	if err != nil {
		return 0, err
	}
	return int(u), nil
}

func (d document) boolField(field string) (bool, error) {
	v, err := d.value(field)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fieldErr(field, "want boolean, got %T", v)
	}
	return b, nil
}

func (d document) macField(field string) (net.HardwareAddr, error) {
	s, err := d.stringField(field)
	if err != nil {
		return nil, err
	}
	mac, err := addr.ParseMAC(s)
	if err != nil {
		return nil, fieldErr(field, "%s", err)
	}
	return mac, nil
}

func (d document) ipv4Field(field string) (net.IP, error) {
	s, err := d.stringField(field)
	if err != nil {
		return nil, err
	}
	ip, err := addr.ParseIPv4(s)
	if err != nil {
		return nil, fieldErr(field, "%s", err)
	}
	return ip, nil
}
