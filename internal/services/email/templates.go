package email

import (
	"bytes"
	"fmt"
	"html/template"
)

type tmpl struct {
	subject string
	body    *template.Template
}

var templates = map[Template]tmpl{
	TemplateEmailVerification: {
		subject: "Verify your InfinitiFlow email",
		body: template.Must(template.New("emailVerification").Parse(
			`<p>Hi {{.name}},</p>
<p>Please confirm your email address by opening the link below. It expires in 24 hours.</p>
<p><a href="{{.url}}">{{.url}}</a></p>`)),
	},
	TemplatePasswordReset: {
		subject: "Your InfinitiFlow password reset link (valid for 10 minutes)",
		body: template.Must(template.New("passwordReset").Parse(
			`<p>Hi {{.name}},</p>
<p>Someone asked to reset your password. If it was you, open the link below within 10 minutes.</p>
<p><a href="{{.url}}">{{.url}}</a></p>
<p>If you did not ask for this, you can ignore this email.</p>`)),
	},
	TemplateWelcome: {
		subject: "Welcome to InfinitiFlow",
		body: template.Must(template.New("welcome").Parse(
			`<p>Hi {{.name}},</p>
<p>Your email is verified. Start creating at <a href="{{.url}}">{{.url}}</a>.</p>`)),
	},
}

// Render returns the subject and HTML body for msg.
func Render(msg Message) (subject, body string, err error) {
	t, ok := templates[msg.Template]
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrUnknownTemplate, msg.Template)
	}
	var buf bytes.Buffer
	if err := t.body.Execute(&buf, msg.Data); err != nil {
		return "", "", fmt.Errorf("render %s: %w", msg.Template, err)
	}
	return t.subject, buf.String(), nil
}
