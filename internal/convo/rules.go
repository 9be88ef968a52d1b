package convo

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Vtrbr2/message-ia-bot/internal/catalog"
	"github.com/Vtrbr2/message-ia-bot/internal/pix"
	"github.com/Vtrbr2/message-ia-bot/internal/repo"
	"github.com/Vtrbr2/message-ia-bot/internal/schedule"
	"github.com/Vtrbr2/message-ia-bot/internal/session"
)

// rule is one (predicate, action) entry of a state's ordered list.
type rule struct {
	match func(*request) bool
	run   func(*Engine, *request) outcome
}

// buildRules assembles the per-state rule tables. Order matters: the lists
// are evaluated top to bottom and the first match wins.
func buildRules() map[session.State][]rule {
	return map[session.State][]rule{
		session.StateMenu: {
			{containsAny("orçamento", "orcamento"), startBudgetFlow},
			{anyOf(equalsAny("1"), containsAny("template", "modelo")), showCatalog},
			{anyOf(equalsAny("2"), containsAny("atendimento", "humano")), showSlots},
			{anyOf(equalsAny("3"), containsAny("projeto")), askProjectDescription},
			{equalsAny("oi", "olá", "ola", "bom dia", "boa tarde", "boa noite", "hello", "hi"), sendWelcome},
			{always, delegateToResponder},
		},
		session.StateAwaitingBudgetOption: {
			{anyOf(equalsAny("1"), containsAny("escolher", "modelo")), showCatalogAfterBudget},
			{anyOf(equalsAny("2"), containsAny("atendimento", "humano")), showSlots},
			{anyOf(equalsAny("3"), containsAny("projeto", "descrever", "outro")), askProjectDescription},
			{always, invalidBudgetOption},
		},
		session.StateAwaitingTemplateSelection: {
			{equalsAny("voltar", "0"), returnToMenu},
			{matchesTemplateID, selectTemplate},
			{always, templateNotFound},
		},
		session.StateAwaitingPaymentDecision: {
			{anyOf(equalsAny("1"), containsAny("pagar", "comprar")), sendPaymentCode},
			{anyOf(equalsAny("2"), containsAny("agendar", "atendimento")), showSlots},
			{anyOf(equalsAny("3"), containsAny("mais", "templates")), showCatalog},
			{anyOf(equalsAny("4"), containsAny("voltar")), returnToMenu},
			{always, invalidPaymentOption},
		},
		session.StateAwaitingScheduleSelection: {
			{equalsAny("voltar", "0"), returnToMenu},
			{matchesSlotNumber, bookSlot},
			{always, invalidSlot},
		},
	}
}

// -- predicates --

func always(*request) bool { return true }

func equalsAny(values ...string) func(*request) bool {
	return func(req *request) bool {
		for _, v := range values {
			if req.norm == v {
				return true
			}
		}
		return false
	}
}

func containsAny(words ...string) func(*request) bool {
	return func(req *request) bool {
		for _, w := range words {
			if strings.Contains(req.norm, w) {
				return true
			}
		}
		return false
	}
}

func anyOf(preds ...func(*request) bool) func(*request) bool {
	return func(req *request) bool {
		for _, p := range preds {
			if p(req) {
				return true
			}
		}
		return false
	}
}

func matchesTemplateID(req *request) bool {
	id, err := strconv.Atoi(req.norm)
	if err != nil {
		return false
	}
	_, ok := catalog.ByID(id)
	return ok
}

func matchesSlotNumber(req *request) bool {
	n, err := strconv.Atoi(req.norm)
	if err != nil {
		return false
	}
	_, ok := schedule.SlotByNumber(n)
	return ok
}

// -- actions --

func startBudgetFlow(_ *Engine, req *request) outcome {
	greeting := fmt.Sprintf("Olá %s, agradeço por você ter entrado em contato conosco 😊. "+
		"Para o nosso orçamento você deve escolher uma das opções abaixo:", req.displayName)
	options := "💎 *ESCOLHA UMA OPÇÃO:*\n\n" +
		"🛒 1. Escolher um modelo de site\n" +
		"👨‍💼 2. Falar com atendimento humano\n" +
		"💬 3. Outro tipo de projeto"
	return outcome{
		replies: []string{greeting, options},
		state:   statePtr(session.StateAwaitingBudgetOption),
	}
}

func showCatalog(_ *Engine, _ *request) outcome {
	return outcome{
		replies: []string{catalog.RenderCatalog()},
		state:   statePtr(session.StateAwaitingTemplateSelection),
	}
}

func showCatalogAfterBudget(_ *Engine, _ *request) outcome {
	return outcome{
		replies: []string{"Entendi! Olhe a lista abaixo e escolha uma das opções:", catalog.RenderCatalog()},
		state:   statePtr(session.StateAwaitingTemplateSelection),
	}
}

func showSlots(_ *Engine, req *request) outcome {
	return outcome{
		replies: []string{schedule.RenderSlots(req.displayName)},
		state:   statePtr(session.StateAwaitingScheduleSelection),
	}
}

func askProjectDescription(_ *Engine, _ *request) outcome {
	return outcome{
		replies: []string{"Por favor, descreva brevemente seu projeto e entraremos em contato!"},
		state:   statePtr(session.StateMenu),
	}
}

func sendWelcome(_ *Engine, req *request) outcome {
	text := fmt.Sprintf("Olá %s! Sou seu assistente virtual. Posso ajudar com:\n\n"+
		"🛒 Orçamento de templates\n"+
		"📅 Agendamento de atendimento\n"+
		"💬 Dúvidas sobre serviços\n\n"+
		"Digite \"orçamento\" para começarmos!", req.displayName)
	return outcome{replies: []string{text}}
}

func delegateToResponder(e *Engine, req *request) outcome {
	reply := e.responder.Reply(req.ctx, req.text, req.displayName)
	return outcome{replies: []string{reply}}
}

func invalidBudgetOption(_ *Engine, _ *request) outcome {
	return outcome{replies: []string{"Por favor, escolha uma opção válida (1, 2 ou 3)."}}
}

func returnToMenu(_ *Engine, _ *request) outcome {
	return outcome{
		replies: []string{"Voltando ao menu principal..."},
		state:   statePtr(session.StateMenu),
	}
}

func selectTemplate(_ *Engine, req *request) outcome {
	id, _ := strconv.Atoi(req.norm)
	tpl, _ := catalog.ByID(id)
	return outcome{
		replies: []string{catalog.RenderDetails(tpl)},
		state:   statePtr(session.StateAwaitingPaymentDecision),
		patch:   session.Patch{TemplateID: &id},
	}
}

func templateNotFound(_ *Engine, _ *request) outcome {
	return outcome{replies: []string{"❌ Template não encontrado. Digite o número correto ou *voltar* para o menu."}}
}

func sendPaymentCode(e *Engine, req *request) outcome {
	tpl, ok := catalog.ByID(req.sess.Context.TemplateID)
	if !ok {
		// Context lost its selection; restart from the menu.
		return outcome{
			replies: []string{"❌ Ocorreu um erro. Tente novamente."},
			state:   statePtr(session.StateMenu),
		}
	}

	payload := pix.Encode(tpl.Price, tpl.Name, e.merchant)
	e.metrics.PaymentsGenerated.Inc()

	var b strings.Builder
	b.WriteString("💎 *PAGAMENTO VIA PIX* 💎\n\n")
	b.WriteString(pix.Instructions(payload, tpl.Price, tpl.Name, e.merchant))

	return outcome{
		replies: []string{b.String()},
		state:   statePtr(session.StateMenu),
	}
}

func invalidPaymentOption(_ *Engine, _ *request) outcome {
	return outcome{replies: []string{"Por favor, escolha uma opção (1, 2, 3 ou 4)."}}
}

func bookSlot(e *Engine, req *request) outcome {
	n, _ := strconv.Atoi(req.norm)
	slot, _ := schedule.SlotByNumber(n)
	date := schedule.At(e.now().In(e.loc), slot)

	booking := repo.Schedule{
		Phone: req.participant,
		Name:  req.displayName,
		Date:  date,
		Slot:  slot.String(),
	}
	if _, err := e.store.SaveSchedule(req.ctx, booking); err != nil {
		// The confirmation is still sent; the booking loss is observable.
		e.logger.Error("failed persisting booking", "participant", req.participant, "error", err)
		e.metrics.Errors.WithLabelValues("persistence").Inc()
	} else {
		e.metrics.BookingsCreated.Inc()
	}

	return outcome{
		replies: []string{schedule.RenderConfirmation(req.displayName, date, slot)},
		state:   statePtr(session.StateMenu),
	}
}

func invalidSlot(_ *Engine, _ *request) outcome {
	return outcome{replies: []string{"❌ Horário inválido. Escolha um número da lista ou digite *voltar*."}}
}

func statePtr(s session.State) *session.State { return &s }
