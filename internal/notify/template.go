package notify

import (
	"bytes"
	"html/template"
	"time"
)

const ResetCodeSubject = "CardioAI Password Reset OTP"

var resetCodeTmpl = template.Must(template.New("reset").Parse(`
<div style="font-family: sans-serif; padding: 20px; border: 1px solid #eee; border-radius: 10px;">
    <h2 style="color: #00ff88;">Password Reset Request</h2>
    <p>Your OTP for resetting your CardioAI password is:</p>
    <h1 style="letter-spacing: 5px; color: #333;">{{.Code}}</h1>
    <p>This code is valid for {{.Minutes}} minutes. If you didn't request this, please ignore this email.</p>
</div>
`))

// ResetCodeMessage renders the password reset e-mail for to.
func ResetCodeMessage(to, code string, ttl time.Duration) (Message, error) {
	var buf bytes.Buffer
	err := resetCodeTmpl.Execute(&buf, struct {
		Code    string
		Minutes int
	}{code, int(ttl / time.Minute)})
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: ResetCodeSubject, HTML: buf.String()}, nil
}
