package actions

import (
	"context"
	"errors"

	"github.com/tjfontaine/movegate/internal/core/domain"
	"github.com/tjfontaine/movegate/internal/core/ports"
	"github.com/tjfontaine/movegate/internal/pipeline"
)

const maxPageSize = 500

// PageInput paginates listings.
type PageInput struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

func (in PageInput) Validate() error {
	if in.Limit < 0 || in.Limit > maxPageSize {
		return &domain.ValidationError{Field: "limit", Message: "must be between 0 and 500"}
	}
	if in.Offset < 0 {
		return &domain.ValidationError{Field: "offset", Message: "must not be negative"}
	}
	return nil
}

// UsersOutput lists users.
type UsersOutput struct {
	Users []*domain.User `json:"users"`
}

// NewListUsersAction creates the list-users action.
func NewListUsersAction(client *pipeline.Client, users ports.UserStore) *pipeline.Action[PageInput, *UsersOutput] {
	return pipeline.NewAction(client, domain.Metadata{ActionName: "list-users"},
		func(ctx context.Context, ec domain.ExecutionContext, in PageInput) (*UsersOutput, error) {
			list, err := users.ListUsers(ctx, ports.ListOptions{Limit: in.Limit, Offset: in.Offset})
			if err != nil {
				return nil, err
			}
			return &UsersOutput{Users: list}, nil
		})
}

// BanUserInput is the input of the ban-user action.
type BanUserInput struct {
	UserID string `json:"userId"`
	Banned bool   `json:"banned"`
}

func (in BanUserInput) Validate() error {
	if in.UserID == "" {
		return &domain.ValidationError{Field: "userId", Message: "is required"}
	}
	return nil
}

// NewBanUserAction creates the ban-user action. Admins cannot ban themselves.
func NewBanUserAction(client *pipeline.Client, users ports.UserStore) *pipeline.Action[BanUserInput, *domain.User] {
	return pipeline.NewAction(client, domain.Metadata{ActionName: "ban-user"},
		func(ctx context.Context, ec domain.ExecutionContext, in BanUserInput) (*domain.User, error) {
			self, err := ec.UserID()
			if err != nil {
				return nil, err
			}
			if in.UserID == self && in.Banned {
				return nil, domain.NewActionError("You cannot ban your own account")
			}
			if err := users.SetBanned(ctx, in.UserID, in.Banned); err != nil {
				return nil, userUpdateError(err)
			}
			return users.GetUserByID(ctx, in.UserID)
		})
}

// SetPlanInput is the input of the set-plan action.
type SetPlanInput struct {
	UserID string `json:"userId"`
	Plan   string `json:"plan"`
}

func (in SetPlanInput) Validate() error {
	if in.UserID == "" {
		return &domain.ValidationError{Field: "userId", Message: "is required"}
	}
	if _, ok := domain.ParsePlan(in.Plan); !ok {
		return &domain.ValidationError{Field: "plan", Message: "must be free or premium"}
	}
	return nil
}

// NewSetPlanAction creates the set-plan action.
func NewSetPlanAction(client *pipeline.Client, users ports.UserStore) *pipeline.Action[SetPlanInput, *domain.User] {
	return pipeline.NewAction(client, domain.Metadata{ActionName: "set-plan"},
		func(ctx context.Context, ec domain.ExecutionContext, in SetPlanInput) (*domain.User, error) {
			plan, _ := domain.ParsePlan(in.Plan)
			if err := users.SetPlan(ctx, in.UserID, plan); err != nil {
				return nil, userUpdateError(err)
			}
			return users.GetUserByID(ctx, in.UserID)
		})
}

func userUpdateError(err error) error {
	if errors.Is(err, domain.ErrUserNotFound) {
		return domain.WrapActionError("User not found", err)
	}
	return err
}

// ListInvocationsInput filters the audit trail.
type ListInvocationsInput struct {
	PageInput
	Action  string `json:"action,omitempty"`
	Outcome string `json:"outcome,omitempty"`
}

func (in ListInvocationsInput) Validate() error {
	if err := in.PageInput.Validate(); err != nil {
		return err
	}
	switch domain.Outcome(in.Outcome) {
	case "", domain.OutcomeSuccess, domain.OutcomeFailure, domain.OutcomeRedirect:
		return nil
	default:
		return &domain.ValidationError{Field: "outcome", Message: "must be success, failure or redirect"}
	}
}

// InvocationsOutput lists audit records, newest first.
type InvocationsOutput struct {
	Invocations []*domain.InvocationRecord `json:"invocations"`
}

// NewListInvocationsAction creates the list-invocations action.
func NewListInvocationsAction(client *pipeline.Client, audit ports.AuditStore) *pipeline.Action[ListInvocationsInput, *InvocationsOutput] {
	return pipeline.NewAction(client, domain.Metadata{ActionName: "list-invocations"},
		func(ctx context.Context, ec domain.ExecutionContext, in ListInvocationsInput) (*InvocationsOutput, error) {
			records, err := audit.ListInvocations(ctx, ports.InvocationListOptions{
				ActionName: in.Action,
				Outcome:    domain.Outcome(in.Outcome),
				Limit:      in.Limit,
				Offset:     in.Offset,
			})
			if err != nil {
				return nil, err
			}
			return &InvocationsOutput{Invocations: records}, nil
		})
}
