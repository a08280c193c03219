package dialogue

import (
	"github.com/Proton-105/pairpicker-bot/internal/i18n"
	"github.com/Proton-105/pairpicker-bot/internal/state"
)

// Menu lists the options offered at each step.
type Menu struct {
	Symbols     []string
	Intervals   []string
	SubmitLabel string
}

// DefaultMenu returns the stock picker options.
func DefaultMenu() Menu {
	return Menu{
		Symbols:     []string{"BTCUSDT", "ETHUSDT"},
		Intervals:   []string{"1h", "4h", "1d"},
		SubmitLabel: "Submit",
	}
}

const (
	keyChooseSymbol    = "picker.choose_symbol"
	keyPleaseSelect    = "picker.please_select"
	keyChooseInterval  = "picker.choose_interval"
	keyMissingSymbol   = "picker.missing_symbol"
	keyMissingInterval = "picker.missing_interval"
	keySummary         = "picker.summary"
	keyResult          = "picker.result"
	keySubmit          = "picker.submit"
	keyUseButtons      = "picker.use_buttons"
)

var fallbackTexts = map[string]string{
	keyChooseSymbol:    "Select your trading pair:",
	keyPleaseSelect:    "Please select:",
	keyChooseInterval:  "Select interval for {{.Symbol}}:",
	keyMissingSymbol:   "Select symbol",
	keyMissingInterval: "Select interval",
	keySummary:         "Ticker: {{.Symbol}}\nInterval: {{.Period}}",
	keyResult:          "{{.Period}}\n{{.Symbol}}",
	keyUseButtons:      "Please use the provided buttons.",
}

// outcome is the decision for one event in one state.
type outcome struct {
	handled bool
	next    state.State
	reply   *Reply
	ack     bool
	restart bool
}

func unhandled(cur state.State) outcome {
	return outcome{next: cur}
}

// decide selects the transition for ev in cur. It has no side effects.
func (d *Dispatcher) decide(cur state.State, ev Event, tr i18n.Translator) outcome {
	if d.allowRestart && ev.Kind == EventCommand && ev.Command == CommandStart {
		if _, atStart := cur.(state.Start); !atStart {
			out := d.onStart(ev, tr)
			out.restart = true
			return out
		}
	}

	switch st := cur.(type) {
	case state.Start:
		if ev.Kind != EventCommand || ev.Command != CommandStart {
			return unhandled(cur)
		}
		return d.onStart(ev, tr)

	case state.AwaitingSymbol:
		if ev.Kind != EventButtonPress {
			return unhandled(cur)
		}
		if ev.Payload == "" {
			return stay(cur, d.text(tr, keyMissingSymbol, nil), true)
		}
		return outcome{
			handled: true,
			next:    state.AwaitingPeriod{Symbol: ev.Payload},
			reply: &Reply{
				Text:     d.text(tr, keyChooseInterval, map[string]string{"Symbol": ev.Payload}),
				Keyboard: singleRow(d.menu.Intervals),
			},
			ack: true,
		}

	case state.AwaitingPeriod:
		if ev.Kind != EventButtonPress {
			return unhandled(cur)
		}
		if ev.Payload == "" {
			return stay(cur, d.text(tr, keyMissingInterval, nil), true)
		}
		return outcome{
			handled: true,
			next:    state.AwaitingConfirmation{Symbol: st.Symbol, Period: ev.Payload},
			reply: &Reply{
				Text: d.text(tr, keySummary, map[string]string{"Symbol": st.Symbol, "Period": ev.Payload}),
				Keyboard: Keyboard{{
					{Text: d.text(tr, keySubmit, nil), Data: d.menu.SubmitLabel},
				}},
			},
			ack: true,
		}

	case state.AwaitingConfirmation:
		if ev.Kind != EventButtonPress {
			return unhandled(cur)
		}
		if ev.Payload == "" {
			return outcome{handled: true, next: cur, ack: true}
		}
		return stay(cur, d.text(tr, keyResult, map[string]string{"Symbol": st.Symbol, "Period": st.Period}), true)

	default:
		return unhandled(cur)
	}
}

func (d *Dispatcher) onStart(ev Event, tr i18n.Translator) outcome {
	if ev.Text == "" {
		return stay(state.Start{}, d.text(tr, keyPleaseSelect, nil), false)
	}

	return outcome{
		handled: true,
		next:    state.AwaitingSymbol{},
		reply: &Reply{
			Text:     d.text(tr, keyChooseSymbol, nil),
			Keyboard: singleRow(d.menu.Symbols),
		},
	}
}

func stay(cur state.State, text string, ack bool) outcome {
	return outcome{
		handled: true,
		next:    cur,
		reply:   &Reply{Text: text},
		ack:     ack,
	}
}

func singleRow(options []string) Keyboard {
	row := make([]Button, 0, len(options))
	for _, opt := range options {
		row = append(row, Button{Text: opt, Data: opt})
	}
	return Keyboard{row}
}

// text resolves key through the catalog, falling back to the built-in English text.
func (d *Dispatcher) text(tr i18n.Translator, key string, vars map[string]string) string {
	value := ""
	if tr != nil {
		value = tr.T(key)
	}
	if value == "" || value == key {
		value = fallbackTexts[key]
	}
	if key == keySubmit && (value == "" || value == key) {
		value = d.menu.SubmitLabel
	}

	return i18n.Render(value, vars)
}
