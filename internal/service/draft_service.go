package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"retailpos/internal/dto"
	"retailpos/internal/model"
	"retailpos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// defaultDraftTaxRate applies when the parser did not extract a tax rate.
var defaultDraftTaxRate = decimal.NewFromInt(10)

type DraftService interface {
	CreateDraft(ctx context.Context, actor Actor, req dto.CreateDraftRequest) (*dto.DraftResponse, error)
	UpdateDraft(ctx context.Context, actor Actor, id uuid.UUID, req dto.UpdateDraftRequest) (*dto.DraftResponse, error)
	GetDraft(ctx context.Context, actor Actor, id uuid.UUID) (*dto.DraftResponse, error)
	ListDrafts(ctx context.Context, actor Actor, filter dto.DraftFilter) (*dto.DraftListResponse, error)
	ConfirmDraft(ctx context.Context, actor Actor, id uuid.UUID, overrides *model.DraftPayload) (*dto.ConfirmDraftResponse, error)
}

type draftService struct {
	repo   repository.DraftRepository
	writer *orderWriter
}

// NewDraftService shares the order pipeline with OrderService through deps.
func NewDraftService(repo repository.DraftRepository, deps OrderDeps) DraftService {
	return &draftService{repo: repo, writer: newOrderWriter(deps)}
}

func (s *draftService) CreateDraft(ctx context.Context, actor Actor, req dto.CreateDraftRequest) (*dto.DraftResponse, error) {
	source := model.DraftSource(req.Source)
	if source != model.DraftSourceText && source != model.DraftSourceVoice {
		return nil, invalid("source", "source must be TEXT or VOICE, got %q", req.Source)
	}
	if req.ConfidenceScore.IsNegative() || req.ConfidenceScore.GreaterThan(decimal.NewFromInt(1)) {
		return nil, invalid("confidence_score", "confidence_score must be between 0 and 1, got %s", req.ConfidenceScore)
	}
	now := s.writer.now()
	d := &model.Draft{
		ID:              uuid.New(),
		OwnerID:         actor.OwnerID,
		DraftCode:       fmt.Sprintf("DRF-%s-%s", now.Format("20060102"), strings.ToUpper(uuid.NewString()[:8])),
		Source:          source,
		RawInput:        req.RawInput,
		ParsedData:      req.ParsedData,
		ConfidenceScore: req.ConfidenceScore,
		MissingFields:   model.StringList(req.MissingFields),
		Questions:       model.StringList(req.Questions),
		Status:          model.DraftStatusDraft,
		CreatedBy:       actor.UserID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return nil, err
	}
	return draftToResponse(d), nil
}

// UpdateDraft edits in place while the draft is still DRAFT.
func (s *draftService) UpdateDraft(ctx context.Context, actor Actor, id uuid.UUID, req dto.UpdateDraftRequest) (*dto.DraftResponse, error) {
	var out *model.Draft
	err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		d, err := s.lock(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		if req.ParsedData != nil {
			d.ParsedData = *req.ParsedData
		}
		if req.MissingFields != nil {
			d.MissingFields = model.StringList(*req.MissingFields)
		}
		if req.Questions != nil {
			d.Questions = model.StringList(*req.Questions)
		}
		d.UpdatedAt = s.writer.now()
		out = d
		return s.repo.Update(ctx, tx, d)
	})
	if err != nil {
		return nil, err
	}
	return draftToResponse(out), nil
}

func (s *draftService) GetDraft(ctx context.Context, actor Actor, id uuid.UUID) (*dto.DraftResponse, error) {
	d, err := s.repo.FindByID(ctx, actor.OwnerID, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("draft", id)
	}
	if err != nil {
		return nil, err
	}
	return draftToResponse(d), nil
}

func (s *draftService) ListDrafts(ctx context.Context, actor Actor, filter dto.DraftFilter) (*dto.DraftListResponse, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 20
	}
	drafts, total, err := s.repo.List(ctx, actor.OwnerID, filter)
	if err != nil {
		return nil, err
	}
	data := make([]dto.DraftResponse, 0, len(drafts))
	for i := range drafts {
		data = append(data, *draftToResponse(&drafts[i]))
	}
	return &dto.DraftListResponse{Data: data, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

// lock row-locks a draft and rejects it unless it is still editable.
func (s *draftService) lock(ctx context.Context, tx *gorm.DB, actor Actor, id uuid.UUID) (*model.Draft, error) {
	d, err := s.repo.LockByID(ctx, tx, actor.OwnerID, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("draft", id)
	}
	if err != nil {
		return nil, err
	}
	if d.Status == model.DraftStatusConfirmed {
		ref := ""
		if d.ConfirmedOrderID != nil {
			ref = " as order " + d.ConfirmedOrderID.String()
		}
		return nil, conflict(CodeAlreadyConfirmed, "draft %s was already confirmed%s", d.DraftCode, ref)
	}
	return d, nil
}

// ── ConfirmDraft ──────────────────────────────────────────────────────────────
//   1. Pre-flight outside TX: merge overrides, price, inventory read
//   2. BEGIN TX: lock draft (must be DRAFT and unchanged), resolve or create
//      customer, persist order through the shared pipeline, mark CONFIRMED
//   3. COMMIT, then the same post-commit steps as a POS order

func (s *draftService) ConfirmDraft(ctx context.Context, actor Actor, id uuid.UUID, overrides *model.DraftPayload) (*dto.ConfirmDraftResponse, error) {
	snapshot, err := s.repo.FindByID(ctx, actor.OwnerID, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("draft", id)
	}
	if err != nil {
		return nil, err
	}
	if snapshot.Status == model.DraftStatusConfirmed {
		return nil, conflict(CodeAlreadyConfirmed, "draft %s was already confirmed", snapshot.DraftCode)
	}

	payload := mergePayload(snapshot.ParsedData, overrides)
	cmd, err := commandFromDraft(snapshot.DraftCode, payload)
	if err != nil {
		return nil, err
	}
	built, err := s.writer.Pricing.Build(cmd)
	if err != nil {
		return nil, prefixField("parsed_data.", err)
	}
	if err := s.writer.checkAvailability(ctx, actor, built); err != nil {
		return nil, prefixField("parsed_data.", err)
	}

	var (
		order   *model.Order
		warning *string
		created *model.Customer
		draft   *model.Draft
	)
	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		d, err := s.lock(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		if !d.UpdatedAt.Equal(snapshot.UpdatedAt) {
			return conflict(CodeDraftChanged, "draft %s was edited while being confirmed; review and confirm again", d.DraftCode)
		}

		customer, isNew, err := s.resolveCustomer(ctx, tx, actor, payload.Customer)
		if err != nil {
			return err
		}
		if isNew {
			created = customer
		}

		o, w, err := s.writer.persist(ctx, tx, actor, cmd, built, customer, orderMeta{draftID: &d.ID, origin: "draft"})
		if err != nil {
			return prefixField("parsed_data.", err)
		}
		order, warning = o, w

		now := s.writer.now()
		d.ParsedData = payload
		d.Status = model.DraftStatusConfirmed
		d.ConfirmedOrderID = &o.ID
		d.ConfirmedBy = &actor.UserID
		d.ConfirmedAt = &now
		d.UpdatedAt = now
		draft = d
		return s.repo.Update(ctx, tx, d)
	})
	if txErr != nil {
		return nil, txErr
	}

	s.writer.afterCommit(ctx, actor, order, "draft")
	log.Info().
		Str("draft_id", draft.ID.String()).
		Str("order_id", order.ID.String()).
		Bool("customer_created", created != nil).
		Msg("draft confirmed")

	resp := &dto.ConfirmDraftResponse{
		Order: *orderToResponse(order, s.writer.now()),
		Draft: *draftToResponse(draft),
	}
	resp.Order.CreditWarning = warning
	if created != nil {
		resp.CreatedCustomer = customerToResponse(created)
	}
	s.writer.publish(ctx, actor.OwnerID, EventDraftConfirmed, resp)
	return resp, nil
}

// resolveCustomer: explicit id must exist; otherwise an exact name+phone match
// is reused; otherwise a new customer is created in tx. No customer info at
// all is a walk-in sale.
func (s *draftService) resolveCustomer(ctx context.Context, tx *gorm.DB, actor Actor, dc *model.DraftCustomer) (*model.Customer, bool, error) {
	if dc == nil {
		return nil, false, nil
	}
	if dc.ID != nil {
		c, err := s.writer.loadCustomer(ctx, tx, actor, *dc.ID)
		if err != nil {
			return nil, false, prefixField("parsed_data.customer.", err)
		}
		return c, false, nil
	}
	name := strings.TrimSpace(dc.Name)
	phone := strings.TrimSpace(dc.Phone)
	if name == "" && phone == "" {
		return nil, false, nil
	}
	if name != "" && phone != "" {
		c, err := s.writer.Customers.FindByNameAndPhone(ctx, tx, actor.OwnerID, name, phone)
		if err == nil {
			return c, false, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, &DependencyError{Dependency: "customer lookup", Err: err}
		}
	}
	if name == "" {
		return nil, false, invalid("parsed_data.customer.name", "a name is required to create a new customer")
	}

	code, err := s.writer.Customers.NextCustomerCode(ctx, tx)
	if err != nil {
		return nil, false, err
	}
	now := s.writer.now()
	c := &model.Customer{
		ID:           uuid.New(),
		OwnerID:      actor.OwnerID,
		CustomerCode: code,
		FullName:     name,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if phone != "" {
		c.Phone = &phone
	}
	if email := strings.TrimSpace(dc.Email); email != "" {
		c.Email = &email
	}
	if err := s.writer.Customers.Create(ctx, tx, c); err != nil {
		return nil, false, err
	}
	return c, true, nil
}

// mergePayload lays non-empty override fields over the parsed data.
func mergePayload(base model.DraftPayload, o *model.DraftPayload) model.DraftPayload {
	if o == nil {
		return base
	}
	out := base
	if o.Customer != nil {
		out.Customer = o.Customer
	}
	if len(o.Items) > 0 {
		out.Items = o.Items
	}
	if o.Payment != nil {
		out.Payment = o.Payment
	}
	if o.TaxRate != nil {
		out.TaxRate = o.TaxRate
	}
	if o.DiscountAmount != nil {
		out.DiscountAmount = o.DiscountAmount
	}
	if o.Notes != nil {
		out.Notes = o.Notes
	}
	return out
}

// commandFromDraft maps the parsed cart onto the same OrderCommand the POS
// submits. Product resolution is external, so every line must be complete.
func commandFromDraft(code string, p model.DraftPayload) (OrderCommand, error) {
	cmd := OrderCommand{
		TaxRate:       defaultDraftTaxRate,
		PaymentMethod: model.MethodCash,
	}
	if p.TaxRate != nil {
		cmd.TaxRate = *p.TaxRate
	}
	if p.DiscountAmount != nil {
		cmd.DiscountAmount = *p.DiscountAmount
	}
	if p.Payment != nil {
		cmd.PaidAmount = p.Payment.PaidAmount
		cmd.IsDebt = p.Payment.IsDebt
		if p.Payment.PaymentMethod != "" {
			cmd.PaymentMethod = p.Payment.PaymentMethod
		}
	}
	if p.Notes != nil {
		cmd.Notes = p.Notes
	} else {
		note := "From draft " + code
		cmd.Notes = &note
	}
	for i, it := range p.Items {
		field := fmt.Sprintf("parsed_data.items[%d]", i)
		label := it.ProductName
		if label == "" {
			label = fmt.Sprintf("line %d", i+1)
		}
		switch {
		case it.ProductID == nil:
			return cmd, invalid(field+".product_id", "product for %q is not resolved", label)
		case it.UnitID == nil:
			return cmd, invalid(field+".unit_id", "unit for %q is not resolved", label)
		case it.UnitPrice == nil:
			return cmd, invalid(field+".unit_price", "unit price for %q is missing", label)
		}
		cmd.Lines = append(cmd.Lines, OrderLineInput{
			ProductID:       *it.ProductID,
			UnitID:          *it.UnitID,
			ProductName:     it.ProductName,
			Quantity:        it.Quantity,
			UnitPrice:       *it.UnitPrice,
			DiscountPercent: it.DiscountPercent,
		})
	}
	return cmd, nil
}

// prefixField relocates a builder ValidationError under the draft payload.
func prefixField(prefix string, err error) error {
	var verr *ValidationError
	if errors.As(err, &verr) && verr.Field != "" && !strings.HasPrefix(verr.Field, prefix) {
		return &ValidationError{Field: prefix + verr.Field, Code: verr.Code, Message: verr.Message}
	}
	return err
}

func draftToResponse(d *model.Draft) *dto.DraftResponse {
	resp := &dto.DraftResponse{
		ID:              d.ID.String(),
		DraftCode:       d.DraftCode,
		Source:          string(d.Source),
		RawInput:        d.RawInput,
		ParsedData:      d.ParsedData,
		ConfidenceScore: d.ConfidenceScore,
		MissingFields:   []string(d.MissingFields),
		Questions:       []string(d.Questions),
		Status:          string(d.Status),
		ConfirmedAt:     formatTime(d.ConfirmedAt),
		CreatedAt:       d.CreatedAt.UTC().Format(timestampLayout),
	}
	if resp.MissingFields == nil {
		resp.MissingFields = []string{}
	}
	if resp.Questions == nil {
		resp.Questions = []string{}
	}
	if d.ConfirmedOrderID != nil {
		id := d.ConfirmedOrderID.String()
		resp.ConfirmedOrderID = &id
	}
	return resp
}
