package product

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Service holds the product business rules and orchestrates the store.
type Service struct {
	store      Store
	tracer     trace.Tracer
	log        zerolog.Logger
	created    metric.Int64Counter
	operations metric.Int64Counter
}

func NewService(store Store, tracer trace.Tracer, meter metric.Meter, log zerolog.Logger) (*Service, error) {
	created, err := meter.Int64Counter(
		"products.created.total",
		metric.WithDescription("Total number of products created"),
	)
	if err != nil {
		return nil, fmt.Errorf("create products.created.total counter: %w", err)
	}
	operations, err := meter.Int64Counter(
		"products.operations",
		metric.WithDescription("Total number of product operations by result"),
	)
	if err != nil {
		return nil, fmt.Errorf("create products.operations counter: %w", err)
	}
	return &Service{
		store:      store,
		tracer:     tracer,
		log:        log.With().Str("component", "product_service").Logger(),
		created:    created,
		operations: operations,
	}, nil
}

// Create validates the request, applies tax and persists a new product.
func (s *Service) Create(ctx context.Context, req ProductRequest) (resp ProductResponse, err error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.Create")
	defer span.End()
	defer func() { s.record(ctx, span, "create", err) }()

	span.SetAttributes(attribute.String("product.name", req.Name))

	price, err := validatePrice(req.Price)
	if err != nil {
		s.log.Warn().Str("name", req.Name).Err(err).Msg("rejected product")
		return ProductResponse{}, err
	}

	p := &Product{Name: req.Name, Price: FinalPrice(price, req.Tax)}
	err = s.store.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		return repo.Persist(ctx, p)
	})
	if err != nil {
		s.log.Error().Str("name", req.Name).Err(err).Msg("failed to store product")
		return ProductResponse{}, err
	}

	s.created.Add(ctx, 1)
	span.SetAttributes(attribute.Int64("product.id", p.ID))
	s.log.Info().Int64("product_id", p.ID).Str("price", p.Price.String()).Msg("product created")
	return ToResponse(p), nil
}

// ListAll returns every product. The slice is empty, never nil, when the
// store holds none.
func (s *Service) ListAll(ctx context.Context) (resp []ProductResponse, err error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.ListAll")
	defer span.End()
	defer func() { s.record(ctx, span, "list", err) }()

	products, err := s.store.ListAll(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list products")
		return nil, err
	}

	resp = make([]ProductResponse, 0, len(products))
	for i := range products {
		resp = append(resp, ToResponse(&products[i]))
	}
	span.SetAttributes(attribute.Int("product.count", len(resp)))
	return resp, nil
}

func (s *Service) FindByID(ctx context.Context, id int64) (resp ProductResponse, err error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.FindByID")
	defer span.End()
	defer func() { s.record(ctx, span, "read", err) }()

	span.SetAttributes(attribute.Int64("product.id", id))

	p, err := s.store.FindByID(ctx, id)
	if err != nil {
		s.logLookupFailure(id, err)
		return ProductResponse{}, err
	}
	return ToResponse(p), nil
}

// Update overwrites name and price of an existing product. Nothing is
// written when the product does not exist.
func (s *Service) Update(ctx context.Context, id int64, req ProductRequest) (resp ProductResponse, err error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.Update")
	defer span.End()
	defer func() { s.record(ctx, span, "update", err) }()

	span.SetAttributes(attribute.Int64("product.id", id))

	price, err := validatePrice(req.Price)
	if err != nil {
		s.log.Warn().Int64("product_id", id).Err(err).Msg("rejected product update")
		return ProductResponse{}, err
	}

	err = s.store.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		p, err := repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		p.Name = req.Name
		p.Price = FinalPrice(price, req.Tax)
		if err := repo.Update(ctx, p); err != nil {
			return err
		}
		resp = ToResponse(p)
		return nil
	})
	if err != nil {
		s.logLookupFailure(id, err)
		return ProductResponse{}, err
	}

	s.log.Info().Int64("product_id", id).Str("price", resp.Price.String()).Msg("product updated")
	return resp, nil
}

func (s *Service) Delete(ctx context.Context, id int64) (err error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.Delete")
	defer span.End()
	defer func() { s.record(ctx, span, "delete", err) }()

	span.SetAttributes(attribute.Int64("product.id", id))

	err = s.store.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		deleted, err := repo.DeleteByID(ctx, id)
		if err != nil {
			return err
		}
		if !deleted {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		s.logLookupFailure(id, err)
		return err
	}

	s.log.Info().Int64("product_id", id).Msg("product deleted")
	return nil
}

func validatePrice(price *decimal.Decimal) (decimal.Decimal, error) {
	if price == nil {
		return decimal.Decimal{}, ErrPriceRequired
	}
	if price.IsNegative() {
		return decimal.Decimal{}, ErrNegativePrice
	}
	return *price, nil
}

func (s *Service) logLookupFailure(id int64, err error) {
	if KindOf(err) == KindNotFound {
		s.log.Debug().Int64("product_id", id).Msg("product not found")
		return
	}
	s.log.Error().Int64("product_id", id).Err(err).Msg("product store failure")
}

func (s *Service) record(ctx context.Context, span trace.Span, op string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
		if kind := KindOf(err); kind != KindUnknown {
			result = kind.String()
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	s.operations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("result", result),
	))
}
