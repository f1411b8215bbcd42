package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"clinicremind/internal/types"
)

func TestRenderer_DefaultTemplates(t *testing.T) {
	loc := mustLoc(t, "America/Mexico_City")
	data := MessageData{
		PatientName: "Ana",
		ServiceName: "Limpieza",
		ClinicName:  "Clínica Sol",
		At:          time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC), // 14:00 local
		Location:    loc,
	}
	r := NewRenderer(types.LocaleES)

	tests := []struct {
		locale types.Locale
		kind   types.MessageKind
		want   string
	}{
		{types.LocaleES, types.KindReminder24h, "Hola Ana, te recordamos tu cita de Limpieza en Clínica Sol mañana, martes 10 de marzo a las 14:00."},
		{types.LocaleEN, types.KindReminder2h, "Hi Ana, your Limpieza appointment at Clínica Sol is today at 2:00 PM. See you soon!"},
		{types.LocalePT, types.KindReminder1h, "Olá Ana, a sua consulta de Limpieza na Clínica Sol começa daqui a uma hora, às 14:00."},
		{"", types.KindFollowUp, "Hola Ana, gracias por visitar Clínica Sol. ¿Cómo te fue con tu Limpieza?"},
	}
	for _, tt := range tests {
		t.Run(string(tt.locale)+"/"+string(tt.kind), func(t *testing.T) {
			got := r.Render(types.ReminderPolicy{Locale: tt.locale}, tt.kind, data)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderer_TenantTemplate(t *testing.T) {
	r := NewRenderer(types.LocaleEN)
	policy := types.ReminderPolicy{
		Locale:           types.LocalePT,
		ReminderTemplate: "{{clinic_name}}: {{patient_name}}, {{service_name}} {{date}} {{time}}",
		FollowUpTemplate: "Obrigado, {{patient_name}}!",
	}
	data := MessageData{
		PatientName: "João",
		ServiceName: "Consulta",
		ClinicName:  "Sorriso",
		At:          time.Date(2026, 3, 10, 12, 30, 0, 0, time.UTC),
	}

	assert.Equal(t, "Sorriso: João, Consulta terça-feira 10 de março 12:30", r.Render(policy, types.KindReminder2h, data))
	assert.Equal(t, "Obrigado, João!", r.Render(policy, types.KindFollowUp, data))
}

func TestFormatDate_UsesLocalDate(t *testing.T) {
	loc := mustLoc(t, "Asia/Kathmandu")
	// 20:30 UTC is already the next day in Kathmandu.
	local := time.Date(2026, 3, 10, 20, 30, 0, 0, time.UTC).In(loc)

	assert.Equal(t, "Wednesday, March 11", FormatDate(local, types.LocaleEN))
	assert.Equal(t, "miércoles 11 de marzo", FormatDate(local, types.LocaleES))
	assert.Equal(t, "02:15", FormatTime(local, types.LocaleES))
	assert.Equal(t, "2:15 AM", FormatTime(local, types.LocaleEN))
}
