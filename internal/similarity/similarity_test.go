package similarity

import (
	"math"
	"testing"
	"time"

	"github.com/nidhogg/findit/internal/item"
	"github.com/nidhogg/findit/internal/text"
	"github.com/stretchr/testify/assert"
)

func TestEditScore(t *testing.T) {
	assert.InDelta(t, 1-3.0/7, EditScore("kitten", "sitting"), 1e-9)
	assert.Equal(t, 1.0, EditScore("Wallet", "wallet"))
	assert.Equal(t, 0.0, EditScore("", "wallet"))
	assert.Equal(t, 0.0, EditScore("   ", "wallet"))
	// rune lengths, not bytes
	assert.InDelta(t, 0.8, EditScore("café!", "cafe!"), 1e-9)
}

func TestCombined(t *testing.T) {
	assert.Equal(t, 1.0, Combined("Samsung", "samsung"))
	assert.InDelta(t, 0.4*6/7+0.6, Combined("Samsung", "Samsng"), 1e-9)
	assert.Equal(t, 0.0, Combined("", "x"))
	assert.Equal(t, 0.0, Combined("x", ""))

	// letterless values fall back to exact equality for the phonetic parts
	assert.Equal(t, 1.0, Combined("12345", "12345"))
	assert.Equal(t, 0.0, Combined("123", "456"))
}

func TestCombinedSymmetric(t *testing.T) {
	pairs := [][2]string{
		{"Samsung", "Samsng"},
		{"leather", "lether"},
		{"Passport", "ID card"},
		{"", "x"},
		{"navy", "blue"},
		{"SN-4411", "sn 4411"},
	}
	for _, p := range pairs {
		assert.Equal(t, Combined(p[0], p[1]), Combined(p[1], p[0]), "%q vs %q", p[0], p[1])
	}
}

func TestTFIDF(t *testing.T) {
	assert.InDelta(t, 1.0, TFIDF("blue leather wallet", "blue leather wallet"), 1e-9)
	assert.Equal(t, 0.0, TFIDF("blue leather wallet", "black umbrella"))
	assert.Equal(t, 0.0, TFIDF("", ""))
	assert.Equal(t, 0.0, TFIDF("   ", "wallet"))
	assert.Equal(t, 0.0, TFIDF("a an the", "wallet"))

	a, b := "blue leather wallet with ID cards", "blue wallet found with some cards"
	s := TFIDF(a, b)
	assert.Greater(t, s, 0.0)
	assert.Less(t, s, 1.0)
	assert.InDelta(t, s, TFIDF(b, a), 1e-12)
}

func TestCorpusWeight(t *testing.T) {
	c := NewCorpus([]string{"wallet", "wallet", "blue"}, []string{"wallet"})
	// df(wallet)=2: idf = 1 + ln(2/3); raw count 2
	assert.InDelta(t, 2*(1+math.Log(2.0/3)), c.Weight("wallet", 0), 1e-9)
	// df(blue)=1: idf = 1 + ln(1) = 1
	assert.InDelta(t, 1.0, c.Weight("blue", 0), 1e-9)
	assert.Equal(t, 0.0, c.Weight("blue", 1))
	assert.Equal(t, 0.0, c.Weight("blue", 5))
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 2, 3}, []float32{2, 4, 6}), 1e-6)
	assert.Equal(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}))
	assert.Equal(t, 0.0, Cosine([]float32{1, 0}, []float32{-1, 0}))
	assert.Equal(t, 0.0, Cosine([]float32{1, 0}, []float32{1, 0, 0}))
	assert.Equal(t, 0.0, Cosine([]float32{0, 0}, []float32{1, 0}))
	assert.Equal(t, 0.0, Cosine(nil, nil))
}

func TestLocationTokens(t *testing.T) {
	assert.Equal(t, []string{"university", "library", "block"},
		LocationTokens("University Library, Block A"))
	assert.Equal(t, []string{"central", "park"}, LocationTokens("  Central Park. "))
	assert.Empty(t, LocationTokens(""))
}

func TestLocation(t *testing.T) {
	assert.Equal(t, 1.0, Location("University Library", "University Library, Block A"))
	// query-side denominator makes the signal asymmetric
	assert.InDelta(t, 2.0/3, Location("University Library, Block A", "University Library"), 1e-9)
	assert.Equal(t, 0.5, Location("Central Park, New York", "near central park"))
	assert.Equal(t, 0.0, Location("", "Park"))
	assert.Equal(t, 0.0, Location("Park", ""))
	// duplicate query tokens count once
	assert.Equal(t, 1.0, Location("park park", "Park"))
}

func TestDateProximity(t *testing.T) {
	d := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, 1.0, DateProximity(d, d))
	assert.InDelta(t, 1-1.0/30, DateProximity(d, d.AddDate(0, 0, 1)), 1e-9)
	assert.InDelta(t, 0.5, DateProximity(d, d.AddDate(0, 0, -15)), 1e-9)
	assert.Equal(t, 0.0, DateProximity(d, d.AddDate(0, 0, 30)))
	assert.Equal(t, 0.0, DateProximity(d, d.AddDate(0, 0, 31)))
	assert.Equal(t, 0.0, DateProximity(time.Time{}, d))
	assert.Equal(t, 0.0, DateProximity(d, time.Time{}))
}

func TestDaysApartUsesCalendarDays(t *testing.T) {
	late := time.Date(2024, 3, 1, 23, 30, 0, 0, time.UTC)
	early := time.Date(2024, 3, 2, 0, 30, 0, 0, time.UTC)
	assert.Equal(t, 1, DaysApart(late, early))
	assert.Equal(t, 0, DaysApart(early, early.Add(20*time.Hour)))
}

func TestKeyword(t *testing.T) {
	assert.Equal(t, 0.75, Keyword("blue leather wallet with ID cards", "blue wallet found with some cards"))
	assert.Equal(t, 0.0, Keyword("", "wallet"))
	assert.Equal(t, 0.0, KeywordOverlap(text.NewSet(), text.NewSet("x")))
}

func TestFeatureOverlap(t *testing.T) {
	a := text.ExtractFeatures("black apple iphone 12")
	assert.InDelta(t, 1.0, FeatureOverlap(a, a), 1e-9)

	b := text.ExtractFeatures("black apple iphone 12 case")
	// nouns {black apple iphone} vs {black apple iphone case}
	assert.InDelta(t, 0.4+0.3+0.2+0.1*0.75, FeatureOverlap(a, b), 1e-9)

	c := text.ExtractFeatures("red umbrella")
	assert.Equal(t, 0.0, FeatureOverlap(a, c))
}

func TestAttributes(t *testing.T) {
	query := &item.Item{Category: item.CategoryAccessories, Brand: "Gucci", Color: "Blue", Material: "Leather"}
	candidate := &item.Item{Category: item.CategoryAccessories, Color: "blue", Material: "leather"}

	total, per := Attributes(query.Category, query, candidate)
	assert.InDelta(t, 0.7, total, 1e-9)
	assert.Equal(t, map[string]float64{item.AttrColor: 1, item.AttrMaterial: 1}, per)

	total, per = Attributes(query.Category, query, nil)
	assert.Equal(t, 0.0, total)
	assert.Nil(t, per)

	total, _ = Attributes(item.Category("Pets"), query, candidate)
	assert.Equal(t, 0.0, total)
}

func TestAttributeTablesSumToOne(t *testing.T) {
	for _, c := range item.Categories {
		sum := 0.0
		for _, row := range AttributeTable(c) {
			sum += row.Weight
		}
		assert.InDelta(t, 1.0, sum, 1e-9, "category %s", c)
	}
}

func TestSignalsBounded(t *testing.T) {
	inputs := []string{"", "Samsung Galaxy S21", "samsng galaxy", "x", "University Library, Block A", "12345"}
	for _, a := range inputs {
		for _, b := range inputs {
			for _, v := range []float64{Combined(a, b), TFIDF(a, b), Keyword(a, b), Location(a, b)} {
				assert.GreaterOrEqual(t, v, 0.0)
				assert.LessOrEqual(t, v, 1.0+1e-12)
			}
		}
	}
}
