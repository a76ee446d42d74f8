package service

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/rl1809/pricechek-rider/internal/core/domain"
)

// USSD screens, without the CON/END prefix.
const (
	screenMainMenu = "Welcome to PriceChekRider!\n" +
		"1. Compare Prices\n" +
		"2. Order Delivery\n" +
		"3. Help\n" +
		"4. Exit"
	screenCityPrompt = "Enter your city code (e.g., NAI for Nairobi):"
	screenHelp       = "PriceChekRider helps you find the cheapest prices nearby and get delivery. " +
		"Choose 1 to compare prices or 2 to see your orders. Dial again to start."
	screenGoodbye        = "Thank you for using PriceChekRider. Goodbye!"
	screenInvalidOption  = "Invalid option. Please try again."
	screenInvalidCity    = "Invalid city code. Dial again and enter a code such as NAI."
	screenCityNoted      = "We have noted your city. We are sending you an SMS. Please reply with your location (e.g. NAI-Kileleshwa)."
	screenError          = "An error occurred. Please try again later."
	screenNoOrders       = "You have no orders yet. Use option 1 to compare prices first."
	screenRecentOrders   = "Your recent orders:"
	recentOrdersLimit    = 5
	recentOrderItemsWide = 30
)

// SMS replies.
const (
	smsWelcome = "Welcome to PriceChekRider! Reply with:\n" +
		"LOCATION-FORMAT: CityCode-Area\n" +
		"Example: NAI-Kileleshwa or NAI-Kasarani"
	smsLocationFormat = "Reply with location in format: CityCode-Area\n" +
		"Example: NAI-Kileleshwa or NAI-Kasarani"
	smsSearchType = "Search for:\n" +
		"1. Single product\n" +
		"2. Multiple products (batch)\n" +
		"Reply 1 or 2"
	smsSearchTypeRetry = "Reply 1 for single product or 2 for multiple products."
	smsSingleProduct   = "Send the product name:\n" +
		"Example: Sugar 2kg"
	smsProductList = "List products (comma separated):\n" +
		"Example: Sugar 2kg, Rice 1kg, Cooking Oil"
	smsNothingFound    = "Sorry, we couldn't find prices for those products. Try different names or reply NEW."
	smsOrderDecision   = "Reply ORDER to confirm delivery or NEW to search again"
	smsNoComparison    = "No recent price comparison found. Send product names (e.g. Sugar 2kg, Milk) then reply ORDER."
	smsNothingToCancel = "You have no active order to cancel. Reply NEW to search again."
	smsCancelExpired   = "Sorry, the cancellation window has expired. Your order is on its way."
	smsCancelled       = "Order cancelled. Reply with products to search again or dial the shortcode to start over."

	deliveryETA   = "45 mins"
	riderIdentity = "Rider John (0722 XXX XXX)"
)

func kes(d decimal.Decimal) string {
	return "KES " + d.Round(0).String()
}

func formatResults(cmp domain.Comparison, deliveryFee decimal.Decimal) string {
	lines := []string{"PriceChekRider Results:"}
	for _, p := range cmp.Products {
		lines = append(lines,
			fmt.Sprintf("*%s*:", titleCase(p.Product)),
			fmt.Sprintf("- Cheapest: %s @ %s", kes(p.Cheapest.Price), storeLabel(p.Cheapest)),
			fmt.Sprintf("- Average: %s", kes(p.Average)),
			"",
		)
	}
	if len(cmp.NotFound) > 0 {
		lines = append(lines, "Not found: "+strings.Join(cmp.NotFound, ", "), "")
	}
	lines = append(lines,
		"Total Cheapest: "+kes(cmp.TotalCheapest),
		"Delivery available for "+kes(deliveryFee),
		"",
		smsOrderDecision,
	)
	return strings.Join(lines, "\n")
}

func formatNothingFound(products []string) string {
	if len(products) == 0 {
		return smsNothingFound
	}
	return fmt.Sprintf("Sorry, we couldn't find prices for %s. Try different names or reply NEW.",
		strings.Join(products, ", "))
}

func formatOrderConfirmation(order domain.Order, trackingURL string, window time.Duration) string {
	return fmt.Sprintf("Order confirmed! Estimated delivery: %s.\n"+
		"%s will contact you.\n"+
		"Total: %s\n"+
		"Track at: %s\n\n"+
		"Reply CANCEL within %s to cancel.",
		deliveryETA, riderIdentity, kes(order.TotalPrice), trackingURL, windowText(window))
}

func formatPostOrder(window time.Duration) string {
	return fmt.Sprintf("Reply CANCEL within %s of ordering to cancel or NEW to search again.", windowText(window))
}

func formatRecentOrders(orders []domain.Order) string {
	lines := []string{screenRecentOrders}
	for _, o := range orders {
		lines = append(lines, fmt.Sprintf("Order #%s: %s - %s (%s)",
			shortID(o.ID), truncate(strings.Join(o.Items, ", "), recentOrderItemsWide), kes(o.TotalPrice), o.Status))
	}
	return strings.Join(lines, "\n")
}

func windowText(window time.Duration) string {
	if window >= time.Minute && window%time.Minute == 0 {
		mins := int(window / time.Minute)
		if mins == 1 {
			return "1 min"
		}
		return fmt.Sprintf("%d mins", mins)
	}
	return window.String()
}

func storeLabel(row domain.PriceRow) string {
	if row.Area == "" {
		return row.Store
	}
	return row.Store + " " + row.Area
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(strings.ToLower(w))
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
