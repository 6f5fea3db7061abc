package consumers

import (
	"bytes"
	"fmt"
	"html/template"
)

const layout = `{{define "layout"}}<!DOCTYPE html>
<html lang="es">
<body style="font-family:Arial,sans-serif;background:#0b0b12;color:#f2f2f2;padding:24px">
<h2 style="margin-top:0">{{.Venue}}</h2>
{{template "body" .}}
<p style="color:#8a8a99;font-size:12px">Este correo fue enviado automáticamente, no respondas a este mensaje.</p>
</body>
</html>{{end}}`

var templates = map[string]string{
	"reservation_received": `{{define "body"}}
<p>Hola {{.Name}},</p>
<p>Recibimos tu solicitud de reserva de la mesa <b>{{.Table}}</b> para <b>{{.Event}}</b> ({{.Date}} {{.Time}}).</p>
<p>Invitados: {{.Guests}}. Te avisaremos cuando sea confirmada.</p>
{{end}}`,

	"reservation_confirmed": `{{define "body"}}
<p>Hola {{.Name}},</p>
<p>Tu reserva de la mesa <b>{{.Table}}</b> para <b>{{.Event}}</b> ({{.Date}} {{.Time}}) está <b>confirmada</b>.</p>
<p>Presenta tu documento en puerta. ¡Te esperamos!</p>
{{end}}`,

	"reservation_closed": `{{define "body"}}
<p>Hola {{.Name}},</p>
<p>Tu reserva de la mesa <b>{{.Table}}</b> para <b>{{.Event}}</b> fue <b>{{.Status}}</b>.</p>
{{with .Reason}}<p>Motivo: {{.}}</p>{{end}}
{{end}}`,

	"tickets_issued": `{{define "body"}}
<p>Hola {{.Name}},</p>
<p>Aquí están tus entradas para <b>{{.Event}}</b> ({{.Date}} {{.Time}}):</p>
<ul>
{{range .Tickets}}<li><a href="{{.URL}}" style="color:#7fd1ff">Entrada {{.Number}}</a></li>
{{end}}</ul>
<p>Muestra el código QR de cada entrada en puerta. Cada código es válido una sola vez.</p>
{{end}}`,

	"payment_failed": `{{define "body"}}
<p>Hola {{.Name}},</p>
<p>No pudimos completar el pago de tu compra para <b>{{.Event}}</b> (orden {{.Order}}).</p>
<p>No se realizó ningún cargo. Puedes intentarlo nuevamente desde la web.</p>
{{end}}`,
}

var parsed = mustParse()

func mustParse() map[string]*template.Template {
	out := make(map[string]*template.Template, len(templates))
	for name, body := range templates {
		t := template.Must(template.New(name).Parse(layout))
		out[name] = template.Must(t.Parse(body))
	}
	return out
}

type ticketLink struct {
	Number int
	URL    string
}

// render executes the named email template inside the common layout.
func render(name string, data any) (string, error) {
	t, ok := parsed[name]
	if !ok {
		return "", fmt.Errorf("unknown email template %q", name)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}
	return buf.String(), nil
}
