// Package dialog holds the conversational vocabulary of the ordering
// pipeline: conversation states, intent types, phrase types, and the finite
// state machine that decides how a classified intent moves a session
// forward.
package dialog

// State is a session's conversational state.
type State string

const (
	// StateIdle is a lane with no active conversation.
	StateIdle State = "IDLE"
	// StateThinking is a greeted customer who has not ordered anything yet.
	StateThinking State = "THINKING"
	// StateOrdering is an open order being built up.
	StateOrdering State = "ORDERING"
	// StateClarifying is a pending question the customer must answer.
	StateClarifying State = "CLARIFYING"
	// StateConfirming is an order summary awaiting a yes/no.
	StateConfirming State = "CONFIRMING"
	// StateClosing is a confirmed order being handed to the kitchen.
	StateClosing State = "CLOSING"
)

// IsValid reports whether s is a recognised conversation state.
func (s State) IsValid() bool {
	switch s {
	case StateIdle, StateThinking, StateOrdering, StateClarifying, StateConfirming, StateClosing:
		return true
	}
	return false
}

// IntentType classifies one customer utterance. The first ten values are
// produced by the intent classifier; the last two only appear as command
// intents emitted by the item resolver.
type IntentType string

const (
	IntentAddItem      IntentType = "ADD_ITEM"
	IntentRemoveItem   IntentType = "REMOVE_ITEM"
	IntentModifyItem   IntentType = "MODIFY_ITEM"
	IntentSetQuantity  IntentType = "SET_QUANTITY"
	IntentClearOrder   IntentType = "CLEAR_ORDER"
	IntentConfirmOrder IntentType = "CONFIRM_ORDER"
	IntentRepeat       IntentType = "REPEAT"
	IntentQuestion     IntentType = "QUESTION"
	IntentSmallTalk    IntentType = "SMALL_TALK"
	IntentUnknown      IntentType = "UNKNOWN"

	// Resolver-only intents; never returned by the classifier.
	IntentClarificationNeeded IntentType = "CLARIFICATION_NEEDED"
	IntentItemUnavailable     IntentType = "ITEM_UNAVAILABLE"
)

// IsValid reports whether i is any recognised intent, including the
// resolver-only variants.
func (i IntentType) IsValid() bool {
	switch i {
	case IntentAddItem, IntentRemoveItem, IntentModifyItem, IntentSetQuantity,
		IntentClearOrder, IntentConfirmOrder, IntentRepeat, IntentQuestion,
		IntentSmallTalk, IntentUnknown, IntentClarificationNeeded, IntentItemUnavailable:
		return true
	}
	return false
}

// IsClassifiable reports whether i can be produced by the intent classifier.
func (i IntentType) IsClassifiable() bool {
	return i.IsValid() && i != IntentClarificationNeeded && i != IntentItemUnavailable
}

// MutatesOrder reports whether i changes the order when executed.
func (i IntentType) MutatesOrder() bool {
	switch i {
	case IntentAddItem, IntentRemoveItem, IntentModifyItem, IntentSetQuantity, IntentClearOrder:
		return true
	}
	return false
}

// PhraseType selects the spoken response for a turn. Canned phrase types map
// to pre-rendered audio files; dynamic ones always go through TTS.
type PhraseType string

const (
	PhraseGreeting              PhraseType = "GREETING"
	PhraseItemAddedSuccess      PhraseType = "ITEM_ADDED_SUCCESS"
	PhraseItemUnavailable       PhraseType = "ITEM_UNAVAILABLE"
	PhraseClarificationQuestion PhraseType = "CLARIFICATION_QUESTION"
	PhraseQuantityTooHigh       PhraseType = "QUANTITY_TOO_HIGH"
	PhraseOrderConfirm          PhraseType = "ORDER_CONFIRM"
	PhraseOrderSummary          PhraseType = "ORDER_SUMMARY"
	PhraseOrderRepeat           PhraseType = "ORDER_REPEAT"
	PhraseOrderComplete         PhraseType = "ORDER_COMPLETE"
	PhraseComeAgain             PhraseType = "COME_AGAIN"
	PhraseDidntUnderstand       PhraseType = "DIDNT_UNDERSTAND"
	PhraseCustomResponse        PhraseType = "CUSTOM_RESPONSE"
	PhraseCantHelpRightNow      PhraseType = "CANT_HELP_RIGHT_NOW"
	PhraseNoOrderYet            PhraseType = "NO_ORDER_YET"
	PhraseAddItemsFirst         PhraseType = "ADD_ITEMS_FIRST"
	PhraseOrderBeingPrepared    PhraseType = "ORDER_BEING_PREPARED"
	PhraseSafetyBlocked         PhraseType = "SAFETY_BLOCKED"
)

// IsDynamic reports whether p always requires TTS synthesis because its text
// depends on order contents or parser output. Non-dynamic phrase types can be
// served from pre-rendered canned audio.
func (p PhraseType) IsDynamic() bool {
	switch p {
	case PhraseCustomResponse, PhraseClarificationQuestion, PhraseOrderSummary, PhraseOrderRepeat:
		return true
	}
	return false
}
