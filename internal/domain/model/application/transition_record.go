package application

import (
	"time"

	"github.com/YoshitsuguKoike/loanstage/internal/domain/model"
)

// TransitionRecord is one recorded, validated move between stages
type TransitionRecord struct {
	ID        string      `json:"id" yaml:"id"`
	From      model.Stage `json:"from" yaml:"from"`
	To        model.Stage `json:"to" yaml:"to"`
	Actor     string      `json:"actor" yaml:"actor"`
	Timestamp time.Time   `json:"timestamp" yaml:"timestamp"`
	Note      string      `json:"note,omitempty" yaml:"note,omitempty"`
}
