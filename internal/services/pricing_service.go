package services

import (
	"context"

	"github.com/ridecredit/backend/internal/models"
	"github.com/shopspring/decimal"
)

// Split is how one seat price is shared between driver and platform.
type Split struct {
	Price decimal.Decimal `json:"price"`
	Fee   decimal.Decimal `json:"commission_fee"`
	Net   decimal.Decimal `json:"driver_payout"`
}

type PricingService struct {
	settings SettingsProvider
}

func NewPricingService(settings SettingsProvider) *PricingService {
	return &PricingService{settings: settings}
}

// TripCost is the listed seat price.
func (s *PricingService) TripCost(trip *models.Trip) decimal.Decimal {
	return models.RoundCredits(trip.PricePerSeat)
}

// EstimateFare quotes rate per km times distance, rounded to cents. It is
// never used to charge a booking.
func (s *PricingService) EstimateFare(ctx context.Context, distanceKM decimal.Decimal) (decimal.Decimal, error) {
	if !distanceKM.IsPositive() {
		return decimal.Zero, invalid("distance_km", "must be greater than zero")
	}
	rate, err := s.settings.RatePerKM(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return models.RoundCredits(rate.Mul(distanceKM)), nil
}

// Commission reads the fee once and splits price. When the fee would leave
// the driver nothing, the driver gets zero and the fee is capped at price.
func (s *PricingService) Commission(ctx context.Context, price decimal.Decimal) (Split, error) {
	fee, err := s.settings.CommissionFee(ctx)
	if err != nil {
		return Split{}, err
	}

	net := price.Sub(fee)
	if !net.IsPositive() {
		return Split{Price: price, Fee: price, Net: decimal.Zero}, nil
	}
	return Split{Price: price, Fee: fee, Net: net}, nil
}

// PlatformAccount is the account credited with commission, if any.
func (s *PricingService) PlatformAccount() string {
	return s.settings.PlatformAccount()
}
