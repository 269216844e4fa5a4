package notify

import (
	"bytes"
	"fmt"
	"sort"
	"text/template"
	"time"
)

type templateSet struct {
	subject *template.Template
	body    *template.Template
	color   string
}

var funcs = template.FuncMap{
	"date": func(v interface{}) string {
		switch t := v.(type) {
		case time.Time:
			return t.Format("2006-01-02 15:04")
		case *time.Time:
			if t == nil {
				return ""
			}
			return t.Format("2006-01-02 15:04")
		}
		return fmt.Sprint(v)
	},
}

func mustSet(subject, body, color string) templateSet {
	return templateSet{
		subject: template.Must(template.New("subject").Funcs(funcs).Parse(subject)),
		body:    template.Must(template.New("body").Funcs(funcs).Parse(body)),
		color:   color,
	}
}

var templates = map[Kind]templateSet{
	RequirementCreated: mustSet(
		"Requirement {{.code}} created",
		"Hello {{.name}},\n\nyour requirement {{.code}} was registered with {{.expected_quantity}} expected sample(s). "+
			"It stays in DRAFT until you submit it.\n",
		ColorInfo),
	SampleReceived: mustSet(
		"Sample {{.qr_code}} received",
		"Hello {{.name}},\n\nsample {{.qr_code}} of requirement {{.requirement_code}} was received by the laboratory on {{date .received_at}}.\n",
		ColorInfo),
	AnalysisCompleted: mustSet(
		"Analysis {{.analysis_type}} completed for {{.qr_code}}",
		"Hello {{.name}},\n\nthe {{.analysis_type}} analysis of sample {{.qr_code}} finished on {{date .ended_at}}. Results are available in labyard.\n",
		ColorSuccess),
	StorageExpiration: mustSet(
		"{{len .items}} stored sample(s) expire within {{.days}} days",
		"Hello {{.name}},\n\nthe following samples reach their estimated expiry soon:\n"+
			"{{range .items}}- {{.qr_code}} at {{.location}} / {{.shelf}}{{if .box}} / {{.box}}{{end}}, expires {{date .expires_at}}\n{{end}}",
		ColorWarning),
	Custom: mustSet("{{.subject}}", "{{.body}}", ColorInfo),
}

// scalarFields are promoted to chat fields when present.
var scalarFields = []string{"code", "qr_code", "requirement_code", "analysis_type"}

// Render builds the Message for kind from data.
func Render(kind Kind, to string, data Data) (Message, error) {
	set, ok := templates[kind]
	if !ok {
		return Message{}, fmt.Errorf("notify: unknown kind %q", kind)
	}

	var subject, body bytes.Buffer
	if err := set.subject.Execute(&subject, data); err != nil {
		return Message{}, fmt.Errorf("notify: render %s subject: %w", kind, err)
	}
	if err := set.body.Execute(&body, data); err != nil {
		return Message{}, fmt.Errorf("notify: render %s body: %w", kind, err)
	}

	msg := Message{
		Kind:    kind,
		To:      to,
		Subject: subject.String(),
		Body:    body.String(),
		Color:   set.color,
	}
	keys := make([]string, 0, len(scalarFields))
	for _, k := range scalarFields {
		if _, ok := data[k]; ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		msg.Fields = append(msg.Fields, Field{Name: k, Value: fmt.Sprint(data[k]), Short: true})
	}
	return msg, nil
}
