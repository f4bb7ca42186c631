package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

type paymentStore struct {
	*baseStore
}

func (s *paymentStore) Create(ctx context.Context, payment *model.Payment) (err error) {
	start := time.Now()
	defer func() { s.observe("create_payment", start, err) }()

	raw, err := json.Marshal(payment)
	if err != nil {
		return fmt.Errorf("failed to encode payment: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.keys.doc(collPayments, payment.ID), raw, 0)
		pipe.SAdd(ctx, s.keys.all(collPayments), payment.ID)
		pipe.SAdd(ctx, s.keys.byOwner(collPayments, payment.OwnerID), payment.ID)
		pipe.SAdd(ctx, s.keys.byPatient(collPayments, payment.PatientID), payment.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

func (s *paymentStore) Get(ctx context.Context, id string) (_ *model.Payment, err error) {
	start := time.Now()
	defer func() { s.observe("get_payment", start, err) }()

	var payment model.Payment
	if err = s.getDoc(ctx, s.keys.doc(collPayments, id), &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

func (s *paymentStore) List(ctx context.Context, filters *model.PaymentFilters) (_ []*model.Payment, err error) {
	start := time.Now()
	defer func() { s.observe("list_payments", start, err) }()

	if filters == nil {
		filters = &model.PaymentFilters{}
	}
	index := s.keys.all(collPayments)
	switch {
	case filters.PatientID != "":
		index = s.keys.byPatient(collPayments, filters.PatientID)
	case filters.OwnerID != "":
		index = s.keys.byOwner(collPayments, filters.OwnerID)
	}

	all, err := loadDocs[model.Payment](ctx, s.baseStore, collPayments, index)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}

	payments := make([]*model.Payment, 0, len(all))
	for _, p := range all {
		if filters.OwnerID != "" && p.OwnerID != filters.OwnerID {
			continue
		}
		payments = append(payments, p)
	}
	sortByCreated(payments, func(p *model.Payment) time.Time { return p.CreatedAt })
	return payments, nil
}

func (s *paymentStore) Update(ctx context.Context, payment *model.Payment) (err error) {
	start := time.Now()
	defer func() { s.observe("update_payment", start, err) }()

	raw, err := json.Marshal(payment)
	if err != nil {
		return fmt.Errorf("failed to encode payment: %w", err)
	}
	ok, err := s.client.SetXX(ctx, s.keys.doc(collPayments, payment.ID), raw, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	if !ok {
		err = repository.ErrNotFound
		return err
	}
	return nil
}

func (s *paymentStore) Delete(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { s.observe("delete_payment", start, err) }()

	var payment model.Payment
	if err = s.getDoc(ctx, s.keys.doc(collPayments, id), &payment); err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.keys.doc(collPayments, id))
		pipe.SRem(ctx, s.keys.all(collPayments), id)
		pipe.SRem(ctx, s.keys.byOwner(collPayments, payment.OwnerID), id)
		pipe.SRem(ctx, s.keys.byPatient(collPayments, payment.PatientID), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete payment: %w", err)
	}
	return nil
}

var _ repository.PaymentRepository = (*paymentStore)(nil)
