package app

import (
	"fmt"

	"github.com/dkeye/Duet/internal/domain"
)

type BackpressureAction int

const (
	DropFrame BackpressureAction = iota
	KickMember
)

// Policy decides what happens to a connection whose send queue is full.
type Policy interface {
	OnBackPressure(p domain.Participant, frameType string) BackpressureAction
}

// SimplePolicy disconnects slow members.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(domain.Participant, string) BackpressureAction {
	return KickMember
}

// LenientPolicy drops the frame and keeps the member.
type LenientPolicy struct{}

func (LenientPolicy) OnBackPressure(domain.Participant, string) BackpressureAction {
	return DropFrame
}

// PolicyByName maps the backpressure_policy setting to a Policy.
func PolicyByName(name string) (Policy, error) {
	switch name {
	case "", "kick":
		return SimplePolicy{}, nil
	case "drop":
		return LenientPolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown backpressure policy %q", name)
	}
}
