package domain

// ContextKey names a field of an ExecutionContext.
type ContextKey string

const (
	KeyUserID   ContextKey = "userId"
	KeyUserRole ContextKey = "userRole"
	KeyPlan     ContextKey = "plan"
	KeyBanned   ContextKey = "banned"
)

// IdentityKeys are the fields added by the authentication stage.
var IdentityKeys = []ContextKey{KeyUserID, KeyUserRole, KeyPlan, KeyBanned}

type contextNode struct {
	parent *contextNode
	key    ContextKey
	value  any
}

// ExecutionContext is the append-only record threaded through the action
// pipeline. Values are immutable: With returns a new context and leaves the
// receiver untouched, so a stage only ever sees the fields added by the stages
// that ran before it. The zero value is the empty context.
type ExecutionContext struct {
	head *contextNode
}

// Value returns the value stored under key.
func (c ExecutionContext) Value(key ContextKey) (any, bool) {
	for n := c.head; n != nil; n = n.parent {
		if n.key == key {
			return n.value, true
		}
	}
	return nil, false
}

// Has reports whether key is set.
func (c ExecutionContext) Has(key ContextKey) bool {
	_, ok := c.Value(key)
	return ok
}

// With returns a context extended by key. Existing fields are never replaced.
func (c ExecutionContext) With(key ContextKey, value any) (ExecutionContext, error) {
	if c.Has(key) {
		return c, &FieldExistsError{Key: key}
	}
	return ExecutionContext{head: &contextNode{parent: c.head, key: key, value: value}}, nil
}

// WithIdentity adds the identity fields.
func (c ExecutionContext) WithIdentity(id Identity) (ExecutionContext, error) {
	var err error
	out := c
	fields := []struct {
		key   ContextKey
		value any
	}{
		{KeyUserID, id.UserID},
		{KeyUserRole, id.Role},
		{KeyPlan, id.Plan},
		{KeyBanned, id.Banned},
	}
	for _, f := range fields {
		if out, err = out.With(f.key, f.value); err != nil {
			return c, err
		}
	}
	return out, nil
}

// Extends reports whether c was derived from base by zero or more With calls.
func (c ExecutionContext) Extends(base ExecutionContext) bool {
	if base.head == nil {
		return true
	}
	for n := c.head; n != nil; n = n.parent {
		if n == base.head {
			return true
		}
	}
	return false
}

// Keys returns the field names in insertion order.
func (c ExecutionContext) Keys() []ContextKey {
	var keys []ContextKey
	for n := c.head; n != nil; n = n.parent {
		keys = append(keys, n.key)
	}
	for i, j := 0, len(keys)-1; i < j; i, j = i+1, j-1 {
		keys[i], keys[j] = keys[j], keys[i]
	}
	return keys
}

// UserID returns the authenticated user id.
func (c ExecutionContext) UserID() (string, error) {
	return lookup[string](c, KeyUserID)
}

// UserRole returns the authenticated user's role.
func (c ExecutionContext) UserRole() (Role, error) {
	return lookup[Role](c, KeyUserRole)
}

// Plan returns the authenticated user's subscription plan.
func (c ExecutionContext) Plan() (Plan, error) {
	return lookup[Plan](c, KeyPlan)
}

// Banned reports whether the authenticated user is banned.
func (c ExecutionContext) Banned() (bool, error) {
	return lookup[bool](c, KeyBanned)
}

// Identity reassembles the identity added by the authentication stage.
func (c ExecutionContext) Identity() (Identity, error) {
	var (
		id  Identity
		err error
	)
	if id.UserID, err = c.UserID(); err != nil {
		return Identity{}, err
	}
	if id.Role, err = c.UserRole(); err != nil {
		return Identity{}, err
	}
	if id.Plan, err = c.Plan(); err != nil {
		return Identity{}, err
	}
	if id.Banned, err = c.Banned(); err != nil {
		return Identity{}, err
	}
	return id, nil
}

func lookup[T any](c ExecutionContext, key ContextKey) (T, error) {
	var zero T
	v, ok := c.Value(key)
	if !ok {
		return zero, &MissingContextError{Key: key}
	}
	t, ok := v.(T)
	if !ok {
		return zero, &MissingContextError{Key: key}
	}
	return t, nil
}
