package orchestratornode

import (
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/table-reservation-agent/agent/contract"
	statex "github.com/tanpawarit/table-reservation-agent/agent/state"
)

// RecordUserMessage refreshes the identity facts from the shell and appends
// the user's text to the history.
func RecordUserMessage(in *GraphState) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}

	in.Session.SetFact(contractx.FactUserName, in.Identity.Name())
	setOrClear(in.Session, contractx.FactUserID, in.Identity.UserID)
	setOrClear(in.Session, contractx.FactUserEmail, in.Identity.Email)

	in.Session.AddMessage(statex.RoleUser, in.Text, in.Now)
	return in, nil
}

// setOrClear keeps a fact in step with this turn's identity, so a value from
// an earlier turn never outlives it.
func setOrClear(session *statex.Context, key, value string) {
	if v := strings.TrimSpace(value); v != "" {
		session.SetFact(key, v)
		return
	}
	session.DeleteFact(key)
}
