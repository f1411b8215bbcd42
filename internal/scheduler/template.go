package scheduler

import (
	"fmt"
	"strings"
	"time"

	"clinicremind/internal/types"
)

// Placeholders recognised in tenant templates.
const (
	PlaceholderPatientName = "{{patient_name}}"
	PlaceholderServiceName = "{{service_name}}"
	PlaceholderDate        = "{{date}}"
	PlaceholderTime        = "{{time}}"
	PlaceholderClinicName  = "{{clinic_name}}"
)

type localeNames struct {
	weekdays [7]string
	months   [12]string
}

var names = map[types.Locale]localeNames{
	types.LocaleEN: {
		weekdays: [7]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"},
		months:   [12]string{"January", "February", "March", "April", "May", "June", "July", "August", "September", "October", "November", "December"},
	},
	types.LocaleES: {
		weekdays: [7]string{"domingo", "lunes", "martes", "miércoles", "jueves", "viernes", "sábado"},
		months:   [12]string{"enero", "febrero", "marzo", "abril", "mayo", "junio", "julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre"},
	},
	types.LocalePT: {
		weekdays: [7]string{"domingo", "segunda-feira", "terça-feira", "quarta-feira", "quinta-feira", "sexta-feira", "sábado"},
		months:   [12]string{"janeiro", "fevereiro", "março", "abril", "maio", "junho", "julho", "agosto", "setembro", "outubro", "novembro", "dezembro"},
	},
}

var defaultTemplates = map[types.Locale]map[types.MessageKind]string{
	types.LocaleEN: {
		types.KindReminder24h: "Hi {{patient_name}}, this is a reminder of your {{service_name}} appointment at {{clinic_name}} tomorrow, {{date}} at {{time}}.",
		types.KindReminder2h:  "Hi {{patient_name}}, your {{service_name}} appointment at {{clinic_name}} is today at {{time}}. See you soon!",
		types.KindReminder1h:  "Hi {{patient_name}}, your {{service_name}} appointment at {{clinic_name}} starts in one hour, at {{time}}.",
		types.KindFollowUp:    "Hi {{patient_name}}, thank you for visiting {{clinic_name}}. How did your {{service_name}} go?",
	},
	types.LocaleES: {
		types.KindReminder24h: "Hola {{patient_name}}, te recordamos tu cita de {{service_name}} en {{clinic_name}} mañana, {{date}} a las {{time}}.",
		types.KindReminder2h:  "Hola {{patient_name}}, tu cita de {{service_name}} en {{clinic_name}} es hoy a las {{time}}. ¡Te esperamos!",
		types.KindReminder1h:  "Hola {{patient_name}}, tu cita de {{service_name}} en {{clinic_name}} comienza en una hora, a las {{time}}.",
		types.KindFollowUp:    "Hola {{patient_name}}, gracias por visitar {{clinic_name}}. ¿Cómo te fue con tu {{service_name}}?",
	},
	types.LocalePT: {
		types.KindReminder24h: "Olá {{patient_name}}, lembramos a sua consulta de {{service_name}} na {{clinic_name}} amanhã, {{date}} às {{time}}.",
		types.KindReminder2h:  "Olá {{patient_name}}, a sua consulta de {{service_name}} na {{clinic_name}} é hoje às {{time}}. Até já!",
		types.KindReminder1h:  "Olá {{patient_name}}, a sua consulta de {{service_name}} na {{clinic_name}} começa daqui a uma hora, às {{time}}.",
		types.KindFollowUp:    "Olá {{patient_name}}, obrigado por visitar a {{clinic_name}}. Como foi o seu {{service_name}}?",
	},
}

// MessageData is the per-appointment input to a template.
type MessageData struct {
	PatientName string
	ServiceName string
	ClinicName  string
	At          time.Time
	Location    *time.Location
}

// Renderer fills tenant templates. Tenant templates use literal
// {{placeholder}} tokens, not text/template actions.
type Renderer struct {
	defaultLocale types.Locale
}

func NewRenderer(defaultLocale types.Locale) *Renderer {
	if _, ok := names[defaultLocale]; !ok {
		defaultLocale = types.LocaleES
	}
	return &Renderer{defaultLocale: defaultLocale}
}

// Render picks the tenant template for kind, falling back to the built-in one
// for the policy locale, and substitutes the placeholders.
func (r *Renderer) Render(policy types.ReminderPolicy, kind types.MessageKind, d MessageData) string {
	locale := r.locale(policy.Locale)

	tmpl := policy.ReminderTemplate
	if kind == types.KindFollowUp {
		tmpl = policy.FollowUpTemplate
	}
	if strings.TrimSpace(tmpl) == "" {
		tmpl = defaultTemplates[locale][kind]
	}

	loc := d.Location
	if loc == nil {
		loc = time.UTC
	}
	local := d.At.In(loc)

	return strings.NewReplacer(
		PlaceholderPatientName, d.PatientName,
		PlaceholderServiceName, d.ServiceName,
		PlaceholderClinicName, d.ClinicName,
		PlaceholderDate, FormatDate(local, locale),
		PlaceholderTime, FormatTime(local, locale),
	).Replace(tmpl)
}

func (r *Renderer) locale(l types.Locale) types.Locale {
	if _, ok := names[l]; ok {
		return l
	}
	return r.defaultLocale
}

// FormatDate renders t's date with localized weekday and month names.
func FormatDate(t time.Time, locale types.Locale) string {
	n, ok := names[locale]
	if !ok {
		n = names[types.LocaleEN]
	}
	wd, mo := n.weekdays[t.Weekday()], n.months[t.Month()-1]
	switch locale {
	case types.LocaleES, types.LocalePT:
		return fmt.Sprintf("%s %d de %s", wd, t.Day(), mo)
	default:
		return fmt.Sprintf("%s, %s %d", wd, mo, t.Day())
	}
}

// FormatTime renders t's wall-clock time: 12-hour for English, 24-hour
// otherwise.
func FormatTime(t time.Time, locale types.Locale) string {
	if locale == types.LocaleEN {
		return t.Format("3:04 PM")
	}
	return t.Format("15:04")
}
