package provider

// Availability values range from -10 (very bad) to 10 (very good).

// StockAvailability rates the total units in stock.
func StockAvailability(stock int) int {
	switch {
	case stock > 100000:
		return 10
	case stock > 5000:
		return 5
	case stock > 200:
		return 0
	case stock > 0:
		return -5
	default:
		return -10
	}
}

// SupplierAvailability rates the number of suppliers holding stock.
func SupplierAvailability(suppliers int) int {
	switch {
	case suppliers > 30:
		return 10
	case suppliers > 9:
		return 5
	case suppliers > 1:
		return 0
	case suppliers > 0:
		return -5
	default:
		return -10
	}
}

// Availability combines the stock and supplier ratings, keeping the worse
// one. Absent inputs are ignored; nil is returned when both are absent.
func Availability(stock, suppliers *int) *int {
	var out *int
	take := func(v int) {
		if out == nil || v < *out {
			out = &v
		}
	}
	if stock != nil {
		take(StockAvailability(*stock))
	}
	if suppliers != nil {
		take(SupplierAvailability(*suppliers))
	}
	return out
}
