package dialog

// Transition is the FSM's answer for one (state, intent) pair.
type Transition struct {
	// IsValid is false when the intent is rejected in the current state.
	// The session state does not change and PhraseType carries the rejection
	// phrase.
	IsValid bool

	// TargetState is the state the session moves to. Equal to the current
	// state when the transition loops or is invalid.
	TargetState State

	// RequiresCommand routes the turn through the parser and executor when
	// true, directly to voice generation when false.
	RequiresCommand bool

	// PhraseType is the default phrase for this transition; the response
	// aggregator may override it based on execution outcomes.
	PhraseType PhraseType
}

// stateKey indexes the transition table.
type stateKey struct {
	state  State
	intent IntentType
}

// loop builds a valid transition that stays in state.
func loop(state State, requiresCommand bool, phrase PhraseType) Transition {
	return Transition{IsValid: true, TargetState: state, RequiresCommand: requiresCommand, PhraseType: phrase}
}

// move builds a valid transition into target.
func move(target State, requiresCommand bool, phrase PhraseType) Transition {
	return Transition{IsValid: true, TargetState: target, RequiresCommand: requiresCommand, PhraseType: phrase}
}

// reject builds an invalid transition that stays in state.
func reject(state State, phrase PhraseType) Transition {
	return Transition{IsValid: false, TargetState: state, PhraseType: phrase}
}

// transitions is the full (state, intent) table. Sessions are created in
// StateThinking, so the first "I'll have a ..." lands on the
// THINKING/ADD_ITEM row.
var transitions = map[stateKey]Transition{
	// IDLE: nothing is in progress; only conversational intents wake the lane.
	{StateIdle, IntentAddItem}:      reject(StateIdle, PhraseNoOrderYet),
	{StateIdle, IntentRemoveItem}:   reject(StateIdle, PhraseNoOrderYet),
	{StateIdle, IntentModifyItem}:   reject(StateIdle, PhraseNoOrderYet),
	{StateIdle, IntentSetQuantity}:  reject(StateIdle, PhraseNoOrderYet),
	{StateIdle, IntentClearOrder}:   reject(StateIdle, PhraseNoOrderYet),
	{StateIdle, IntentConfirmOrder}: reject(StateIdle, PhraseNoOrderYet),
	{StateIdle, IntentRepeat}:       reject(StateIdle, PhraseNoOrderYet),
	{StateIdle, IntentQuestion}:     move(StateThinking, true, PhraseCustomResponse),
	{StateIdle, IntentSmallTalk}:    move(StateThinking, true, PhraseCustomResponse),
	{StateIdle, IntentUnknown}:      move(StateThinking, false, PhraseComeAgain),

	// THINKING: greeted, empty order. Only ADD_ITEM opens the order.
	{StateThinking, IntentAddItem}:      move(StateOrdering, true, PhraseItemAddedSuccess),
	{StateThinking, IntentRemoveItem}:   reject(StateThinking, PhraseNoOrderYet),
	{StateThinking, IntentModifyItem}:   reject(StateThinking, PhraseNoOrderYet),
	{StateThinking, IntentSetQuantity}:  reject(StateThinking, PhraseNoOrderYet),
	{StateThinking, IntentClearOrder}:   reject(StateThinking, PhraseNoOrderYet),
	{StateThinking, IntentConfirmOrder}: reject(StateThinking, PhraseNoOrderYet),
	{StateThinking, IntentRepeat}:       reject(StateThinking, PhraseNoOrderYet),
	{StateThinking, IntentQuestion}:     move(StateClarifying, true, PhraseCustomResponse),
	{StateThinking, IntentSmallTalk}:    loop(StateThinking, true, PhraseCustomResponse),
	{StateThinking, IntentUnknown}:      move(StateClarifying, false, PhraseComeAgain),

	// ORDERING: all order mutations loop; confirm moves to the summary.
	{StateOrdering, IntentAddItem}:      loop(StateOrdering, true, PhraseItemAddedSuccess),
	{StateOrdering, IntentRemoveItem}:   loop(StateOrdering, true, PhraseItemAddedSuccess),
	{StateOrdering, IntentModifyItem}:   loop(StateOrdering, true, PhraseItemAddedSuccess),
	{StateOrdering, IntentSetQuantity}:  loop(StateOrdering, true, PhraseItemAddedSuccess),
	{StateOrdering, IntentClearOrder}:   loop(StateOrdering, true, PhraseItemAddedSuccess),
	{StateOrdering, IntentConfirmOrder}: move(StateConfirming, false, PhraseOrderSummary),
	{StateOrdering, IntentRepeat}:       loop(StateOrdering, true, PhraseOrderRepeat),
	{StateOrdering, IntentQuestion}:     move(StateClarifying, true, PhraseCustomResponse),
	{StateOrdering, IntentSmallTalk}:    loop(StateOrdering, true, PhraseCustomResponse),
	{StateOrdering, IntentUnknown}:      move(StateClarifying, false, PhraseComeAgain),

	// CLARIFYING: any order mutation resolves the clarification.
	{StateClarifying, IntentAddItem}:      move(StateOrdering, true, PhraseItemAddedSuccess),
	{StateClarifying, IntentRemoveItem}:   move(StateOrdering, true, PhraseItemAddedSuccess),
	{StateClarifying, IntentModifyItem}:   move(StateOrdering, true, PhraseItemAddedSuccess),
	{StateClarifying, IntentSetQuantity}:  move(StateOrdering, true, PhraseItemAddedSuccess),
	{StateClarifying, IntentClearOrder}:   move(StateOrdering, true, PhraseItemAddedSuccess),
	{StateClarifying, IntentConfirmOrder}: reject(StateClarifying, PhraseAddItemsFirst),
	{StateClarifying, IntentRepeat}:       loop(StateClarifying, true, PhraseOrderRepeat),
	{StateClarifying, IntentQuestion}:     loop(StateClarifying, true, PhraseCustomResponse),
	{StateClarifying, IntentSmallTalk}:    loop(StateClarifying, true, PhraseCustomResponse),
	{StateClarifying, IntentUnknown}:      loop(StateClarifying, false, PhraseComeAgain),

	// CONFIRMING: mutations re-open the order; a second confirm closes it.
	{StateConfirming, IntentAddItem}:      move(StateOrdering, true, PhraseItemAddedSuccess),
	{StateConfirming, IntentRemoveItem}:   move(StateOrdering, true, PhraseItemAddedSuccess),
	{StateConfirming, IntentModifyItem}:   move(StateOrdering, true, PhraseItemAddedSuccess),
	{StateConfirming, IntentSetQuantity}:  move(StateOrdering, true, PhraseItemAddedSuccess),
	{StateConfirming, IntentClearOrder}:   move(StateOrdering, true, PhraseItemAddedSuccess),
	{StateConfirming, IntentConfirmOrder}: move(StateClosing, true, PhraseOrderComplete),
	{StateConfirming, IntentRepeat}:       loop(StateConfirming, true, PhraseOrderRepeat),
	{StateConfirming, IntentQuestion}:     move(StateClarifying, true, PhraseCustomResponse),
	{StateConfirming, IntentSmallTalk}:    loop(StateConfirming, true, PhraseCustomResponse),
	{StateConfirming, IntentUnknown}:      loop(StateConfirming, false, PhraseComeAgain),

	// CLOSING: the order went to the kitchen; only last-second additions
	// re-open it.
	{StateClosing, IntentAddItem}:      move(StateOrdering, true, PhraseItemAddedSuccess),
	{StateClosing, IntentRemoveItem}:   reject(StateClosing, PhraseOrderBeingPrepared),
	{StateClosing, IntentModifyItem}:   reject(StateClosing, PhraseOrderBeingPrepared),
	{StateClosing, IntentSetQuantity}:  reject(StateClosing, PhraseOrderBeingPrepared),
	{StateClosing, IntentClearOrder}:   reject(StateClosing, PhraseOrderBeingPrepared),
	{StateClosing, IntentConfirmOrder}: reject(StateClosing, PhraseOrderBeingPrepared),
	{StateClosing, IntentRepeat}:       loop(StateClosing, true, PhraseOrderRepeat),
	{StateClosing, IntentQuestion}:     loop(StateClosing, true, PhraseCustomResponse),
	{StateClosing, IntentSmallTalk}:    loop(StateClosing, true, PhraseCustomResponse),
	{StateClosing, IntentUnknown}:      loop(StateClosing, false, PhraseComeAgain),
}

// Lookup returns the transition for (state, intent). It is total: pairs not
// covered by the table come back invalid with the CANT_HELP_RIGHT_NOW phrase
// and no state change.
func Lookup(state State, intent IntentType) Transition {
	if t, ok := transitions[stateKey{state, intent}]; ok {
		return t
	}
	return Transition{
		IsValid:     false,
		TargetState: state,
		PhraseType:  PhraseCantHelpRightNow,
	}
}

// InitialState is the conversational state of a freshly created session.
const InitialState = StateThinking
