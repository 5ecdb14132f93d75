// SPDX-License-Identifier: BSD-3-Clause

package cycle

// row is one entry in a source state's ordered transition list: the
// first row whose guard evaluates true fires.
type row struct {
	guard  guard
	action action
	to     State
}

// wildcardRows fire regardless of current state and take precedence over
// any pending next, since abort/quench are explicit state-unconditional
// triggers.
var wildcardRows = map[Trigger]row{
	TriggerAbort:  {guard: guardAlways, action: actionNone, to: Deramping},
	TriggerQuench: {guard: guardAlways, action: actionNone, to: Off},
}

// startRows fires the start trigger only from the two states a cooldown
// may begin from.
var startRows = map[State]row{
	Off:       {guard: guardAlways, action: actionCloseHeatswitchAndBridgeManual, to: HsClosing},
	Deramping: {guard: guardAlways, action: actionCloseHeatswitchAndBridgeManual, to: HsClosing},
}

// nextTable is the ordered per-state `next` transition list, transcribed
// directly from the cycle's transition table.
var nextTable = map[State][]row{
	HsClosing: {
		{guard: guardHeatswitchClosed, action: actionNone, to: Ramping},
		{guard: not(guardHeatswitchClosed), action: actionCloseHeatswitchAndBridgeManual, to: HsClosing},
	},
	Ramping: {
		{guard: guardCurrentReadyToSoak, action: actionNone, to: Soaking},
		{guard: guardAlways, action: actionIncrementCurrent, to: Ramping},
	},
	Soaking: {
		{guard: and(guardCurrentAtSoak, not(guardSoakElapsed)), action: actionNone, to: Soaking},
		{guard: and(guardCurrentAtSoak, guardSoakElapsed), action: actionOpenHeatswitchAndBridgeScaled, to: HsOpening},
		{guard: not(guardCurrentAtSoak), action: actionNone, to: Deramping},
	},
	HsOpening: {
		{guard: guardHsOpeningReady, action: actionNone, to: Cooling},
		{guard: guardAlways, action: actionOpenHeatswitchAndBridgeScaled, to: HsOpening},
	},
	Cooling: {
		{guard: guardHeatswitchClosed, action: actionNone, to: Deramping},
		{guard: guardCoolingReadyForRegulate, action: actionSetModePID, to: Regulating},
		{guard: guardAlways, action: actionDecrementCurrent, to: Cooling},
	},
	Regulating: {
		{guard: guardRegulatingHolds, action: actionNone, to: Regulating},
		{guard: guardAlways, action: actionNone, to: Deramping},
	},
	Deramping: {
		{guard: not(guardCurrentAboveEpsilon), action: actionBridgeManual, to: Off},
		{guard: guardAlways, action: actionDecrementCurrent, to: Deramping},
	},
	Off: {
		{guard: guardAlways, action: actionNone, to: Off},
	},
}
