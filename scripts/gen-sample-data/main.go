// gen-sample-data writes a small deterministic dataset for local pipeline
// runs and demos: property and neighborhood JSON sources, the location
// reference, and a wikipedia summary database.
//
// Usage: go run ./scripts/gen-sample-data [-out dir] [-properties n] [-seed n]
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

type city struct {
	name, state, county string
	lat, lon            float64
	neighborhoods       []string
}

var cities = []city{
	{"San Francisco", "CA", "San Francisco County", 37.7749, -122.4194,
		[]string{"Mission District", "Noe Valley", "Sunset District"}},
	{"Austin", "TX", "Travis County", 30.2672, -97.7431,
		[]string{"Hyde Park", "Zilker", "East Austin"}},
	{"Denver", "CO", "Denver County", 39.7392, -104.9903,
		[]string{"Capitol Hill", "Highland", "Five Points"}},
}

var propertyTypes = []string{"condo", "single_family", "townhouse", "multi_family"}

var featurePool = []string{
	"hardwood floors", "garage", "pool", "garden", "solar panels",
	"renovated kitchen", "fireplace", "central air", "balcony", "home office",
}

var amenityPool = []string{
	"parks", "cafes", "farmers market", "library", "bike lanes",
	"playgrounds", "restaurants", "galleries", "transit hub",
}

func main() {
	out := flag.String("out", "./sample-data", "output directory")
	properties := flag.Int("properties", 60, "number of property listings")
	seed := flag.Int64("seed", 42, "random seed")
	flag.Parse()

	if err := generate(*out, *properties, *seed); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func generate(dir string, propertyCount int, seed int64) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	rng := rand.New(rand.NewSource(seed))

	if err := writeJSON(filepath.Join(dir, "neighborhoods.json"), neighborhoods(rng)); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, "properties.json"), listings(rng, propertyCount)); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, "locations.json"), locations()); err != nil {
		return err
	}
	if err := wikipediaDB(filepath.Join(dir, "wikipedia.db")); err != nil {
		return err
	}
	fmt.Printf("sample data written to %s\n", dir)
	return nil
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}

func neighborhoodID(cityIdx, hoodIdx int) string {
	return fmt.Sprintf("N%d%02d", cityIdx+1, hoodIdx+1)
}

func neighborhoods(rng *rand.Rand) []map[string]any {
	var rows []map[string]any
	for ci, c := range cities {
		for hi, name := range c.neighborhoods {
			rows = append(rows, map[string]any{
				"neighborhood_id": neighborhoodID(ci, hi),
				"name":            name,
				"city":            c.name,
				"state":           c.state,
				"county":          c.county,
				"description": fmt.Sprintf("%s is a %s neighborhood in %s.",
					name, pick(rng, []string{"vibrant", "quiet", "historic", "walkable"}), c.name),
				"coordinates": map[string]any{
					"lat": round(c.lat + rng.Float64()*0.05 - 0.025),
					"lon": round(c.lon + rng.Float64()*0.05 - 0.025),
				},
				"amenities": sample(rng, amenityPool, 3+rng.Intn(3)),
				"tags":      sample(rng, []string{"family-friendly", "nightlife", "artsy", "green", "foodie"}, 2),
				"demographics": map[string]any{
					"population":    5000 + rng.Intn(45000),
					"households":    2000 + rng.Intn(15000),
					"median_age":    round(28 + rng.Float64()*20),
					"median_income": 45000 + rng.Intn(120000),
				},
				"school_ratings": map[string]any{
					"elementary": round(4 + rng.Float64()*6),
					"middle":     round(4 + rng.Float64()*6),
					"high":       round(4 + rng.Float64()*6),
				},
				"safety_rating":     round(3 + rng.Float64()*7),
				"walkability_score": round(3 + rng.Float64()*7),
				"avg_home_value":    300000 + rng.Intn(1200000),
			})
		}
	}
	return rows
}

func listings(rng *rand.Rand, count int) []map[string]any {
	rows := make([]map[string]any, 0, count)
	for i := 0; i < count; i++ {
		ci := rng.Intn(len(cities))
		c := cities[ci]
		hi := rng.Intn(len(c.neighborhoods))
		sqft := 600 + rng.Intn(3400)
		price := float64(sqft) * (250 + rng.Float64()*600)

		row := map[string]any{
			"listing_id": fmt.Sprintf("P%04d", i+1),
			"address": map[string]any{
				"street": fmt.Sprintf("%d %s St", 100+rng.Intn(9900),
					pick(rng, []string{"Oak", "Pine", "Valencia", "Cedar", "Lake"})),
				"city":  c.name,
				"state": c.state,
				"zip":   fmt.Sprintf("%05d", 10000+rng.Intn(89999)),
			},
			"coordinates": map[string]any{
				"lat": round(c.lat + rng.Float64()*0.08 - 0.04),
				"lon": round(c.lon + rng.Float64()*0.08 - 0.04),
			},
			"property_details": map[string]any{
				"square_feet":   sqft,
				"bedrooms":      1 + rng.Intn(5),
				"bathrooms":     float64(2+rng.Intn(6)) / 2,
				"property_type": pick(rng, propertyTypes),
				"year_built":    1920 + rng.Intn(105),
			},
			"listing_price":   round(price),
			"description":     fmt.Sprintf("A %s home in %s.", pick(rng, []string{"bright", "spacious", "charming", "modern"}), c.neighborhoods[hi]),
			"features":        sample(rng, featurePool, 2+rng.Intn(4)),
			"days_on_market":  rng.Intn(120),
			"neighborhood_id": neighborhoodID(ci, hi),
		}

		// A sprinkling of messy records keeps the validation paths honest.
		switch i % 17 {
		case 5:
			delete(row, "coordinates")
		case 11:
			row["listing_price"] = fmt.Sprintf("%.0f", price) // stringly priced
		}
		rows = append(rows, row)
	}
	return rows
}

func locations() []map[string]any {
	var rows []map[string]any
	for _, c := range cities {
		rows = append(rows, map[string]any{"state": c.state})
		rows = append(rows, map[string]any{"state": c.state, "county": c.county, "city": c.name})
		for _, n := range c.neighborhoods {
			rows = append(rows, map[string]any{
				"state": c.state, "county": c.county, "city": c.name, "neighborhood": n,
			})
		}
	}
	return rows
}

func wikipediaDB(path string) error {
	os.Remove(path)
	dbx, err := sqlx.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer dbx.Close()

	stmts := []string{
		`CREATE TABLE articles (pageid INTEGER PRIMARY KEY, title TEXT, url TEXT,
			relevance_score REAL, latitude REAL, longitude REAL, categories TEXT)`,
		`CREATE TABLE page_summaries (page_id INTEGER PRIMARY KEY, short_summary TEXT,
			long_summary TEXT, key_topics TEXT, best_city TEXT, best_state TEXT, confidence_score REAL)`,
	}
	for _, stmt := range stmts {
		if _, err := dbx.Exec(stmt); err != nil {
			return err
		}
	}

	pageID := int64(1000)
	for _, c := range cities {
		for _, n := range c.neighborhoods {
			pageID++
			_, err := dbx.Exec(
				`INSERT INTO articles VALUES (?, ?, ?, ?, ?, ?, ?)`,
				pageID, n,
				fmt.Sprintf("https://en.wikipedia.org/wiki/%s", n),
				7.5, c.lat, c.lon, "Neighborhoods")
			if err != nil {
				return err
			}
			_, err = dbx.Exec(
				`INSERT INTO page_summaries VALUES (?, ?, ?, ?, ?, ?, ?)`,
				pageID,
				fmt.Sprintf("%s is a neighborhood of %s.", n, c.name),
				fmt.Sprintf("%s is a neighborhood in %s, %s, known for its local character and community institutions.", n, c.name, c.state),
				`["neighborhood","community"]`, c.name, c.state, 0.8)
			if err != nil {
				return err
			}
		}
		pageID++
		if _, err := dbx.Exec(
			`INSERT INTO articles VALUES (?, ?, ?, ?, ?, ?, ?)`,
			pageID, c.name,
			fmt.Sprintf("https://en.wikipedia.org/wiki/%s", c.name),
			9.0, c.lat, c.lon, "Cities"); err != nil {
			return err
		}
		if _, err := dbx.Exec(
			`INSERT INTO page_summaries VALUES (?, ?, ?, ?, ?, ?, ?)`,
			pageID,
			fmt.Sprintf("%s is a city in %s.", c.name, c.state),
			fmt.Sprintf("%s is a major city in %s with a population in the hundreds of thousands and a diverse set of neighborhoods.", c.name, c.state),
			`["city","geography"]`, c.name, c.state, 0.9); err != nil {
			return err
		}
	}
	return nil
}

func pick(rng *rand.Rand, vals []string) string {
	return vals[rng.Intn(len(vals))]
}

func sample(rng *rand.Rand, pool []string, n int) []string {
	idx := rng.Perm(len(pool))
	if n > len(pool) {
		n = len(pool)
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = pool[idx[i]]
	}
	return out
}

func round(v float64) float64 {
	return float64(int(v*10000)) / 10000
}
