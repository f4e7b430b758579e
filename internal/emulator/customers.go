package emulator

import (
	"cartsync/internal/types"
	"context"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// CreateCustomer registers a customer who can then sign in with the password grant. Emails are
// unique regardless of case.
func (p *Platform) CreateCustomer(ctx context.Context, token string, draft types.CustomerDraft) (types.CustomerInfo, error) {
	if _, err := p.enter(ctx, token, &p.stats.Customers); err != nil {
		return types.CustomerInfo{}, err
	}
	if err := draft.Validate(); err != nil {
		return types.CustomerInfo{}, types.Err(types.ErrInvalidInput, err, "")
	}
	cu := types.Customer{
		ID:        uuid.NewString(),
		Email:     strings.TrimSpace(draft.Email),
		Password:  draft.Password,
		FirstName: draft.FirstName,
		LastName:  draft.LastName,
	}

	p.mu.Lock()
	key := emailKey(cu.Email)
	if _, ok := p.customers[key]; ok {
		p.mu.Unlock()
		return types.CustomerInfo{}, types.Err(types.ErrCustomerExists, nil, "there is already an existing customer with the email %s", cu.Email)
	}
	p.customers[key] = cu
	p.mu.Unlock()

	log.WithField("customerID", cu.ID).Debug("emulator: customer created")
	return customerInfo(cu), nil
}

// QueryCustomers returns the customers registered with email.
func (p *Platform) QueryCustomers(ctx context.Context, token, email string) (types.CustomerPage, error) {
	if _, err := p.enter(ctx, token, &p.stats.Customers); err != nil {
		return types.CustomerPage{}, err
	}
	page := types.CustomerPage{Results: []types.CustomerInfo{}}
	p.mu.Lock()
	if cu, ok := p.customers[emailKey(email)]; ok {
		page.Results = append(page.Results, customerInfo(cu))
	}
	p.mu.Unlock()
	page.Count = len(page.Results)
	page.Total = page.Count
	return page, nil
}

func (p *Platform) CustomerExists(ctx context.Context, token, email string) (bool, error) {
	page, err := p.QueryCustomers(ctx, token, email)
	return page.Count > 0, err
}

func customerInfo(cu types.Customer) types.CustomerInfo {
	return types.CustomerInfo{ID: cu.ID, Email: cu.Email, FirstName: cu.FirstName, LastName: cu.LastName}
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
