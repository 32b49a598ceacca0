package usecase

import (
	"math"
	"time"

	"vehicle-rental/internal/data/entity"
	"vehicle-rental/pkg/utils"
)

// rentalUnits returns the billable hours and days of [start, end). Partial
// units round up; at least one day is billed.
func rentalUnits(start, end time.Time) (hours, days int) {
	d := end.Sub(start)
	hours = int(math.Ceil(d.Hours()))
	days = int(math.Ceil(d.Hours() / 24))
	if days < 1 {
		days = 1
	}
	return hours, days
}

// durationDiscount picks the single highest tier the rental qualifies for.
// Tiers never stack.
func durationDiscount(l *entity.Listing, days int) float64 {
	switch {
	case days >= 30 && l.Discount30Days > 0:
		return l.Discount30Days
	case days >= 7 && l.Discount7Days > 0:
		return l.Discount7Days
	case days >= 3 && l.Discount3Days > 0:
		return l.Discount3Days
	}
	return 0
}

// CalculatePrice prices a rental and validates the selected options against
// the listing's catalogue. The returned options carry server-side prices.
func CalculatePrice(l *entity.Listing, start, end time.Time, opts entity.SelectedOptions) (entity.PriceBreakdown, entity.SelectedOptions, error) {
	if !start.Before(end) {
		return entity.PriceBreakdown{}, opts, validationf("start must be before end")
	}

	hours, days := rentalUnits(start, end)
	p := entity.PriceBreakdown{Days: days, Hours: hours}

	if l.HourlyEnabled && l.PricePerHour > 0 {
		p.Hourly = true
		p.Subtotal = l.PricePerHour * float64(hours)
	} else {
		p.Subtotal = l.PricePerDay * float64(days)
	}
	p.Subtotal = utils.RoundMoney(p.Subtotal)

	p.DiscountPercent = durationDiscount(l, days)
	p.DiscountAmount = utils.RoundMoney(p.Subtotal * p.DiscountPercent / 100)
	p.BasePrice = utils.RoundMoney(p.Subtotal - p.DiscountAmount)

	priced, optionsPrice, err := priceOptions(l.Options, opts, days)
	if err != nil {
		return entity.PriceBreakdown{}, opts, err
	}
	p.OptionsPrice = optionsPrice
	p.Total = utils.RoundMoney(p.BasePrice + p.OptionsPrice)

	return p, priced, nil
}

func priceOptions(catalog entity.ListingOptions, opts entity.SelectedOptions, days int) (entity.SelectedOptions, float64, error) {
	out := entity.SelectedOptions{}
	var total float64

	if opts.Insurance != nil {
		var policy *entity.InsurancePolicy
		for i := range catalog.InsurancePolicies {
			if catalog.InsurancePolicies[i].ID == opts.Insurance.PolicyID {
				policy = &catalog.InsurancePolicies[i]
				break
			}
		}
		if policy == nil {
			return out, 0, validationf("insurance policy %q is not offered on this listing", opts.Insurance.PolicyID)
		}
		price := utils.RoundMoney(policy.PricePerDay * float64(days))
		out.Insurance = &entity.InsuranceOption{PolicyID: policy.ID, Price: price}
		total += price
	}

	if opts.Delivery != nil {
		offer := catalog.Delivery
		if offer == nil || !offer.Available {
			return out, 0, validationf("delivery is not available on this listing")
		}
		if opts.Delivery.DistanceKm < 0 {
			return out, 0, validationf("delivery distance must not be negative")
		}
		if opts.Delivery.DistanceKm > offer.MaxRadiusKm {
			return out, 0, validationf("delivery distance %.1f km exceeds the %.1f km radius", opts.Delivery.DistanceKm, offer.MaxRadiusKm)
		}
		if opts.Delivery.Address == "" {
			return out, 0, validationf("delivery address is required")
		}
		price := utils.RoundMoney(offer.BaseFee + offer.PricePerKm*opts.Delivery.DistanceKm)
		out.Delivery = &entity.DeliveryOption{
			Address:    opts.Delivery.Address,
			DistanceKm: opts.Delivery.DistanceKm,
			Price:      price,
		}
		total += price
	}

	if opts.SecondDriver != nil {
		offer := catalog.SecondDriver
		if offer == nil || !offer.Available {
			return out, 0, validationf("second driver is not available on this listing")
		}
		if opts.SecondDriver.DriverName == "" {
			return out, 0, validationf("second driver name is required")
		}
		price := utils.RoundMoney(offer.PricePerDay * float64(days))
		out.SecondDriver = &entity.SecondDriverOption{DriverName: opts.SecondDriver.DriverName, Price: price}
		total += price
	}

	return out, utils.RoundMoney(total), nil
}
