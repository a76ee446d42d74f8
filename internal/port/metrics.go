package port

import "github.com/rl1809/pricechek-rider/internal/core/domain"

type Metrics interface {
	USSDScreen(level int, continues bool)
	SMSTurn(step domain.ConversationStep)
	Delivery(result string)
}

// NopMetrics discards all observations.
type NopMetrics struct{}

func (NopMetrics) USSDScreen(int, bool)            {}
func (NopMetrics) SMSTurn(domain.ConversationStep) {}
func (NopMetrics) Delivery(string)                 {}
