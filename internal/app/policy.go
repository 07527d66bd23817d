package app

import "github.com/dkeye/Jukebox/internal/core"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickMember
	DropFrame
)

type Policy interface {
	OnBackPressure(room core.RoomSession, member core.MemberSession) BackpressureAction
}

// SimplePolicy kicks any connection that cannot keep up.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(core.RoomSession, core.MemberSession) BackpressureAction {
	return KickMember
}

// TolerantPolicy drops frames for slow members and never kicks them.
type TolerantPolicy struct{}

func (TolerantPolicy) OnBackPressure(core.RoomSession, core.MemberSession) BackpressureAction {
	return DropFrame
}
