package stubbackend

import (
	"time"

	"github.com/onnwee/shopfinder/internal/geo"
	"github.com/onnwee/shopfinder/internal/shop"
)

func clock(h, m int) shop.Clock {
	return shop.Clock{Hour: h, Minute: m}
}

// week opens the given days with the same hours.
func week(open, closing shop.Clock, days ...time.Weekday) map[time.Weekday]Hours {
	w := make(map[time.Weekday]Hours, len(days))
	for _, d := range days {
		w[d] = Hours{Open: open, Close: closing}
	}
	return w
}

var monToSat = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday,
}

func review(author, text, date string) shop.Review {
	return shop.Review{Author: author, Text: text, Date: date}
}

// DefaultListings is a small catalogue of shops around Berlin, with one shop
// in Potsdam and one in Hamburg to exercise the coverage radius.
func DefaultListings() []Listing {
	return []Listing{
		{
			Shop: shop.Shop{
				PlaceID:         "ChIJ-mitte-biomarkt",
				Name:            "Biomarkt Mitte",
				Address:         "Rosenthaler Str. 40, 10178 Berlin",
				Location:        geo.Coordinate{Latitude: 52.5265, Longitude: 13.4020},
				Rating:          4.6,
				PredictedRating: 4.7,
				Summary:         "Organic grocer with fresh dairy and friendly staff.",
				Reviews:         []shop.Review{
					review("Lena", "Fresh milk every morning and the staff are really friendly.", "2024-03-02"),
					review("Tom", "Great selection of organic cheese, a bit expensive.", "2024-02-18"),
					review("Aylin", "Clean shop, excellent bread, helpful people.", "2024-01-27"),
				},
			},
			Products: []string{"milk", "oat milk", "cheese", "bread", "eggs", "coffee"},
			Week:     week(clock(8, 0), clock(21, 0), monToSat...),
		},
		{
			Shop: shop.Shop{
				PlaceID:         "ChIJ-kreuzberg-spati",
				Name:            "Späti am Kanal",
				Address:         "Paul-Lincke-Ufer 7, 10999 Berlin",
				Location:        geo.Coordinate{Latitude: 52.4953, Longitude: 13.4262},
				Rating:          4.1,
				PredictedRating: 3.9,
				Summary:         "Late-night corner shop, convenient but pricey.",
				Reviews:         []shop.Review{
					review("Jonas", "Always open, convenient, but expensive and sometimes rude.", "2024-03-10"),
					review("Mara", "Cold drinks and milk at 2am, what else do you need.", "2024-02-01"),
				},
			},
			Products: []string{"milk", "beer", "snacks", "coffee"},
			Week:     week(clock(18, 0), clock(6, 0),
				time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
				time.Friday, time.Saturday, time.Sunday),
		},
		{
			Shop: shop.Shop{
				PlaceID:         "ChIJ-prenzlauer-kaese",
				Name:            "Käsekeller Prenzlauer Berg",
				Address:         "Kollwitzstr. 52, 10405 Berlin",
				Location:        geo.Coordinate{Latitude: 52.5358, Longitude: 13.4183},
				Rating:          4.8,
				PredictedRating: 4.8,
				Summary:         "Specialist cheese shop with knowledgeable owners.",
				Reviews:         []shop.Review{
					review("Sophie", "Excellent cheese, knowledgeable and friendly owner.", "2024-03-05"),
					review("Ben", "Delicious, fresh and worth every cent.", "2024-01-14"),
				},
			},
			Products: []string{"cheese", "milk", "butter", "wine"},
			Week:     week(clock(10, 0), clock(19, 0), time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday),
		},
		{
			Shop: shop.Shop{
				PlaceID:         "ChIJ-neukoelln-markt",
				Name:            "Nachbarschaftsmarkt Neukölln",
				Address:         "Karl-Marx-Str. 101, 12043 Berlin",
				Location:        geo.Coordinate{Latitude: 52.4810, Longitude: 13.4350},
				Rating:          3.8,
				PredictedRating: 3.6,
				Summary:         "Cheap supermarket, crowded at peak times.",
				Reviews:         []shop.Review{
					review("Emre", "Cheap and big, but crowded and the checkout is slow.", "2024-02-22"),
					review("Nina", "Milk was out of date once, otherwise fine.", "2024-01-09"),
				},
			},
			Products: []string{"milk", "bread", "eggs", "vegetables", "coffee", "flowers"},
			Week:     week(clock(7, 0), clock(22, 0), monToSat...),
		},
		{
			Shop: shop.Shop{
				PlaceID:         "ChIJ-friedrichshain-baeckerei",
				Name:            "Bäckerei Boxhagen",
				Address:         "Boxhagener Str. 18, 10245 Berlin",
				Location:        geo.Coordinate{Latitude: 52.5110, Longitude: 13.4600},
				Rating:          4.5,
				PredictedRating: 4.4,
				Summary:         "Neighbourhood bakery with excellent sourdough.",
				Reviews:         []shop.Review{
					review("Paul", "Excellent sourdough and great coffee, friendly service.", "2024-03-12"),
					review("Ida", "Delicious pastries but the queue is long on weekends.", "2024-02-25"),
				},
			},
			Products: []string{"bread", "pastries", "coffee", "milk"},
			Week:     week(clock(6, 30), clock(18, 0), time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday),
		},
		{
			Shop: shop.Shop{
				PlaceID:         "ChIJ-charlottenburg-feinkost",
				Name:            "Feinkost Charlottenburg",
				Address:         "Kantstr. 60, 10627 Berlin",
				Location:        geo.Coordinate{Latitude: 52.5060, Longitude: 13.3050},
				Rating:          4.3,
				PredictedRating: 4.2,
				Summary:         "Delicatessen with imported goods, expensive but high quality.",
				Reviews:         []shop.Review{
					review("Clara", "High quality cheese and wine, expensive.", "2024-03-01"),
					review("Max", "Helpful staff, great olive oil.", "2024-02-11"),
				},
			},
			Products: []string{"cheese", "wine", "olive oil", "coffee"},
			Week:     week(clock(9, 0), clock(20, 0), monToSat...),
		},
		{
			Shop: shop.Shop{
				PlaceID:         "ChIJ-spandau-hofladen",
				Name:            "Hofladen Spandau",
				Address:         "Neuendorfer Str. 12, 13585 Berlin",
				Location:        geo.Coordinate{Latitude: 52.5410, Longitude: 13.2050},
				Rating:          4.4,
				PredictedRating: 4.5,
				Summary:         "Farm shop selling raw milk and eggs from local farms.",
				Reviews:         []shop.Review{
					review("Heike", "Fresh raw milk straight from the farm, lovely people.", "2024-03-08"),
					review("Olaf", "Great eggs, a bit far but worth it.", "2024-01-30"),
				},
			},
			Products: []string{"milk", "raw milk", "eggs", "butter", "honey"},
			Week:     week(clock(9, 0), clock(17, 0), time.Wednesday, time.Friday, time.Saturday),
		},
		{
			Shop: shop.Shop{
				PlaceID:         "ChIJ-potsdam-milchladen",
				Name:            "Milchladen Potsdam",
				Address:         "Brandenburger Str. 30, 14467 Potsdam",
				Location:        geo.Coordinate{Latitude: 52.3988, Longitude: 13.0657},
				Rating:          4.7,
				PredictedRating: 4.6,
				Summary:         "Dairy specialist, friendly and fresh.",
				Reviews:         []shop.Review{
					review("Greta", "Friendly, fresh and excellent yoghurt.", "2024-02-14"),
				},
			},
			Products: []string{"milk", "yoghurt", "cheese", "butter"},
			Week:     week(clock(8, 0), clock(18, 0), monToSat...),
		},
		{
			Shop: shop.Shop{
				PlaceID:         "ChIJ-hamburg-fischmarkt",
				Name:            "Altonaer Marktladen",
				Address:         "Große Elbstr. 9, 22767 Hamburg",
				Location:        geo.Coordinate{Latitude: 53.5450, Longitude: 9.9380},
				Rating:          4.2,
				PredictedRating: 4.0,
				Summary:         "Market hall shop far outside Berlin.",
				Reviews:         []shop.Review{
					review("Jan", "Good fish, fresh milk, rude cashier.", "2024-01-05"),
				},
			},
			Products: []string{"fish", "milk", "bread"},
			Week:     week(clock(5, 0), clock(14, 0), time.Sunday),
		},
	}
}

// DefaultCatalogue indexes DefaultListings.
func DefaultCatalogue() *Catalogue {
	return NewCatalogue(DefaultListings())
}
