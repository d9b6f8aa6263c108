package handler

import (
	"bytes"
	"encoding/json"
	"errors"
)

// text is a request string field that also accepts a bare JSON number, so
// {"otp": 123456} binds like {"otp": "123456"}.  null leaves it empty.
type text string

func (t *text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*t = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = text(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return errors.New("expected a string")
	}
	*t = text(n.String())
	return nil
}
