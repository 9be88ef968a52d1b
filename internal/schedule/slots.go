package schedule

import (
	"fmt"
	"strings"
	"time"
)

const (
	firstHour = 13
	lastHour  = 23
)

// Slot is a fixed bookable hour, formatted as "15:00".
type Slot struct {
	Hour int
}

// String renders the slot label shown to users and stored with bookings.
func (s Slot) String() string {
	return fmt.Sprintf("%d:00", s.Hour)
}

var slots = buildSlots()

func buildSlots() []Slot {
	out := make([]Slot, 0, lastHour-firstHour+1)
	for h := firstHour; h <= lastHour; h++ {
		out = append(out, Slot{Hour: h})
	}
	return out
}

// Slots returns the fixed ordered slot sequence (13:00 through 23:00).
func Slots() []Slot {
	out := make([]Slot, len(slots))
	copy(out, slots)
	return out
}

// SlotByNumber resolves a 1-based menu position into a slot.
func SlotByNumber(n int) (Slot, bool) {
	if n < 1 || n > len(slots) {
		return Slot{}, false
	}
	return slots[n-1], true
}

// At anchors the slot on the calendar day of now in now's location.
func At(now time.Time, s Slot) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), s.Hour, 0, 0, 0, now.Location())
}

// RenderSlots formats the slot picker sent in chat.
func RenderSlots(displayName string) string {
	var b strings.Builder
	b.WriteString("📅 *AGENDAMENTO DE ATENDIMENTO*\n\n")
	fmt.Fprintf(&b, "Olá %s! Escolha um horário disponível:\n\n", displayName)
	for i, s := range slots {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s)
	}
	b.WriteString("\n💡 Digite o *NÚMERO* do horário desejado\n")
	b.WriteString("Ou digite *voltar* para o menu principal")
	return b.String()
}

// RenderConfirmation formats the booking confirmation message.
func RenderConfirmation(displayName string, date time.Time, s Slot) string {
	var b strings.Builder
	b.WriteString("✅ *AGENDAMENTO CONFIRMADO!*\n\n")
	fmt.Fprintf(&b, "👤 Cliente: %s\n", displayName)
	fmt.Fprintf(&b, "📅 Data: %s\n", date.Format("02/01/2006"))
	fmt.Fprintf(&b, "⏰ Horário: %s\n\n", s)
	b.WriteString("💡 *Instruções:*\n")
	b.WriteString("- Estaremos disponíveis no horário agendado\n")
	b.WriteString("- Você receberá uma lembrança 1h antes\n")
	b.WriteString("- Para reagendar, entre em contato conosco\n\n")
	b.WriteString("Obrigado por confiar em nosso trabalho! 🚀")
	return b.String()
}
