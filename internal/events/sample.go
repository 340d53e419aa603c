package events

// Event is one entry in an events response.
type Event struct {
	Name  string `json:"name"`
	Venue string `json:"venue"`
	Date  string `json:"date"`
}

// sampleEvents backs the wrong_city fault: when it fires, the agent serves
// another city's listings with a straight face.
var sampleEvents = map[string][]Event{
	"paris": {
		{Name: "Seine Riverside Jazz", Venue: "Quai de la Tournelle", Date: "2026-09-04"},
		{Name: "Montmartre Art Walk", Venue: "Place du Tertre", Date: "2026-09-07"},
	},
	"london": {
		{Name: "Thames Festival", Venue: "South Bank", Date: "2026-09-05"},
		{Name: "West End Open Night", Venue: "Covent Garden", Date: "2026-09-09"},
	},
	"tokyo": {
		{Name: "Shibuya Music Crossing", Venue: "Shibuya Stream Hall", Date: "2026-09-03"},
		{Name: "Asakusa Lantern Evening", Venue: "Sensō-ji Grounds", Date: "2026-09-08"},
	},
	"berlin": {
		{Name: "Spree Open Air", Venue: "Treptower Park", Date: "2026-09-06"},
		{Name: "Gallery Weekend", Venue: "Mitte", Date: "2026-09-11"},
	},
	"new york": {
		{Name: "Brooklyn Night Bazaar", Venue: "Greenpoint", Date: "2026-09-05"},
		{Name: "Central Park Concert", Venue: "Great Lawn", Date: "2026-09-10"},
	},
	"sydney": {
		{Name: "Harbour Lights", Venue: "Circular Quay", Date: "2026-09-04"},
		{Name: "Bondi Markets", Venue: "Bondi Beach", Date: "2026-09-07"},
	},
	"mumbai": {
		{Name: "Juhu Food Carnival", Venue: "Juhu Beach", Date: "2026-09-06"},
		{Name: "Kala Ghoda Pop-up", Venue: "Fort District", Date: "2026-09-12"},
	},
	"seattle": {
		{Name: "Pike Place Busker Week", Venue: "Pike Place Market", Date: "2026-09-03"},
		{Name: "Fremont Sunday Fair", Venue: "Fremont Ave", Date: "2026-09-08"},
	},
}

// sampleCities lists the cities with canned listings, in stable order.
var sampleCities = []string{"paris", "london", "tokyo", "berlin", "new york", "sydney", "mumbai", "seattle"}
