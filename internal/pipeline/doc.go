// Package pipeline provides the action execution engine.
//
// An action is a business handler executed through a Client: an ordered,
// immutable chain of stages. Each stage receives the execution context built
// so far, the invocation (credential, input, metadata) and a continuation.
// It may end the chain early, call the continuation with an extended context,
// and observe what the continuation returns.
//
// # Stages
//
// The standard chain (see NewClients) is:
//
//	logging -> authentication -> [role-gate] -> [plan-gate] -> handler
//
//   - Logging records entry and exit of every invocation.
//   - Authentication resolves the session and adds userId, userRole, plan
//     and banned to the context.
//   - Role gates redirect callers holding another role to their landing page.
//   - Plan gates fail with EntitlementRequired.
//
// Gates read fields added by authentication. New rejects chains where a
// gate precedes authentication.
//
// # Outcomes
//
// Client.Execute always returns exactly one of Success, Failure or Redirect.
// Errors and panics raised by stages or handlers are classified at the client
// boundary with domain.Classify; unknown errors are reported to the caller
// with domain.DefaultServerErrorMessage only.
package pipeline
