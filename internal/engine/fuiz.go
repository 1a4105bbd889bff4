/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package engine

import (
	"errors"
	"fmt"
	"time"
)

// SlideKind tags which engine a SlideConfig targets (spec §3 "Fuiz").
type SlideKind string

const (
	SlideKindMultipleChoice SlideKind = "MultipleChoice"
	SlideKindTypeAnswer     SlideKind = "TypeAnswer"
	SlideKindOrder          SlideKind = "Order"
)

// SlideConfig is the tagged union of validated slide configurations (spec
// §3, §9 "Sub-state-machine polymorphism"). Exactly one of the pointer
// fields matching Kind must be non-nil.
type SlideConfig struct {
	Kind SlideKind `json:"kind"`

	MultipleChoice *MultipleChoiceConfig `json:"multiple_choice,omitempty"`
	TypeAnswer     *TypeAnswerConfig     `json:"type_answer,omitempty"`
	Order          *OrderConfig          `json:"order,omitempty"`
}

// Ingestion bounds (spec §3 "Validation ... performed at ingestion").
const (
	MinTitleLength = 1
	MaxTitleLength = 250

	MinAnswerTextLength = 1
	MaxAnswerTextLength = 250

	MinTimeLimit = time.Second
	MaxTimeLimit = 10 * time.Minute

	MinIntroduceQuestion = 0
	MaxIntroduceQuestion = time.Minute

	MinAnswerCount = 0
	MaxAnswerCount = 8

	MinPointsAwarded = 0
	MaxPointsAwarded = 100_000

	MaxSlides = 125
)

func validateDuration(field string, d, min, max time.Duration) error {
	if d < min || d > max {
		return fmt.Errorf("%s %s is outside bounds [%s,%s]", field, d, min, max)
	}

	return nil
}

func validateTitle(title string) error {
	if len(title) < MinTitleLength || len(title) > MaxTitleLength {
		return fmt.Errorf("title length %d is outside bounds [%d,%d]", len(title), MinTitleLength, MaxTitleLength)
	}

	return nil
}

func validatePoints(points int) error {
	if points < MinPointsAwarded || points > MaxPointsAwarded {
		return fmt.Errorf("points_awarded %d is outside bounds [%d,%d]", points, MinPointsAwarded, MaxPointsAwarded)
	}

	return nil
}

// Validate checks a SlideConfig's bounds, returning an error describing
// the first violation.
func (c SlideConfig) Validate() error {
	switch c.Kind {
	case SlideKindMultipleChoice:
		if c.MultipleChoice == nil {
			return errors.New("multiple_choice config missing")
		}

		cfg := c.MultipleChoice

		if err := validateTitle(cfg.Title); err != nil {
			return err
		}

		if err := validateDuration("introduce_question", cfg.IntroduceQuestion, MinIntroduceQuestion, MaxIntroduceQuestion); err != nil {
			return err
		}

		if err := validateDuration("time_limit", cfg.TimeLimit, MinTimeLimit, MaxTimeLimit); err != nil {
			return err
		}

		if err := validatePoints(cfg.PointsAwarded); err != nil {
			return err
		}

		if len(cfg.Answers) > MaxAnswerCount {
			return fmt.Errorf("answer count %d exceeds max %d", len(cfg.Answers), MaxAnswerCount)
		}

		for _, a := range cfg.Answers {
			if len(a.Content.Text) < MinAnswerTextLength || len(a.Content.Text) > MaxAnswerTextLength {
				return fmt.Errorf("answer text length %d is outside bounds [%d,%d]", len(a.Content.Text), MinAnswerTextLength, MaxAnswerTextLength)
			}
		}

		return nil

	case SlideKindTypeAnswer:
		if c.TypeAnswer == nil {
			return errors.New("type_answer config missing")
		}

		cfg := c.TypeAnswer

		if err := validateTitle(cfg.Title); err != nil {
			return err
		}

		if err := validateDuration("introduce_question", cfg.IntroduceQuestion, MinIntroduceQuestion, MaxIntroduceQuestion); err != nil {
			return err
		}

		if err := validateDuration("time_limit", cfg.TimeLimit, MinTimeLimit, MaxTimeLimit); err != nil {
			return err
		}

		return validatePoints(cfg.PointsAwarded)

	case SlideKindOrder:
		if c.Order == nil {
			return errors.New("order config missing")
		}

		cfg := c.Order

		if err := validateTitle(cfg.Title); err != nil {
			return err
		}

		if err := validateDuration("introduce_question", cfg.IntroduceQuestion, MinIntroduceQuestion, MaxIntroduceQuestion); err != nil {
			return err
		}

		if err := validateDuration("time_limit", cfg.TimeLimit, MinTimeLimit, MaxTimeLimit); err != nil {
			return err
		}

		return validatePoints(cfg.PointsAwarded)

	default:
		return fmt.Errorf("unknown slide kind %q", c.Kind)
	}
}

func (c SlideConfig) toSlide() (Slide, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	switch c.Kind {
	case SlideKindMultipleChoice:
		return NewMultipleChoiceState(*c.MultipleChoice), nil
	case SlideKindTypeAnswer:
		return NewTypeAnswerState(*c.TypeAnswer), nil
	case SlideKindOrder:
		return NewOrderState(*c.Order), nil
	default:
		return nil, fmt.Errorf("unknown slide kind %q", c.Kind)
	}
}

// Fuiz is a game's immutable static configuration: a title plus an ordered
// slide list (spec §3 "Fuiz").
type Fuiz struct {
	Title  string        `json:"title"`
	Slides []SlideConfig `json:"slides"`
}

// Validate checks Fuiz-level and per-slide bounds.
func (f Fuiz) Validate() error {
	if err := validateTitle(f.Title); err != nil {
		return err
	}

	if len(f.Slides) > MaxSlides {
		return fmt.Errorf("slide count %d exceeds max %d", len(f.Slides), MaxSlides)
	}

	for i, slide := range f.Slides {
		if err := slide.Validate(); err != nil {
			return fmt.Errorf("slide %d: %w", i, err)
		}
	}

	return nil
}

// Sequencer is the thin dispatcher over a Fuiz's slide vector (spec §4.6).
type Sequencer struct {
	fuiz   Fuiz
	slides []Slide
}

// NewSequencer validates f and builds a runtime Slide for each config.
func NewSequencer(f Fuiz) (*Sequencer, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	slides := make([]Slide, len(f.Slides))

	for i, c := range f.Slides {
		s, err := c.toSlide()
		if err != nil {
			return nil, fmt.Errorf("slide %d: %w", i, err)
		}

		slides[i] = s
	}

	return &Sequencer{fuiz: f, slides: slides}, nil
}

// Len returns the number of slides.
func (seq *Sequencer) Len() int { return len(seq.slides) }

// Title returns the Fuiz title.
func (seq *Sequencer) Title() string { return seq.fuiz.Title }

// PlaySlide invokes the engine at index. Returns true if index is
// out-of-bounds (nothing to play) or if the engine reports immediate
// completion.
func (seq *Sequencer) PlaySlide(ctx *SlideContext, index int) bool {
	if index < 0 || index >= len(seq.slides) {
		return true
	}

	ctx.SlideIndex = index

	return seq.slides[index].Play(ctx)
}

// ReceiveMessage routes to the engine at index, propagating its
// "finished" return (spec §4.6 "receive_message").
func (seq *Sequencer) ReceiveMessage(ctx *SlideContext, index int, playerId Id, msg IncomingMessage) bool {
	if index < 0 || index >= len(seq.slides) {
		return false
	}

	ctx.SlideIndex = index

	return seq.slides[index].ReceiveMessage(ctx, playerId, msg)
}

// ReceiveAlarm routes to the engine at index.
func (seq *Sequencer) ReceiveAlarm(ctx *SlideContext, index int, alarm AlarmMessage) bool {
	if index < 0 || index >= len(seq.slides) {
		return false
	}

	ctx.SlideIndex = index

	return seq.slides[index].ReceiveAlarm(ctx, alarm)
}

// sequencerSyncPayload wraps a per-slide sync message with its position
// (spec §4.6 "state_message ... wrapping its sync message in the
// top-level variant tag").
type sequencerSyncPayload struct {
	Index int         `json:"index"`
	Count int         `json:"count"`
	Slide SyncMessage `json:"slide"`
}

// StateMessage routes to the engine at index, wrapping its Sync message.
func (seq *Sequencer) StateMessage(ctx *SlideContext, index int, watcherId Id, kind Kind) SyncMessage {
	if index < 0 || index >= len(seq.slides) {
		return NewSyncMessage("SequencerOutOfBounds", nil)
	}

	ctx.SlideIndex = index
	inner := seq.slides[index].StateMessage(ctx, watcherId, kind)

	return NewSyncMessage("Slide", sequencerSyncPayload{Index: index, Count: len(seq.slides), Slide: inner})
}
