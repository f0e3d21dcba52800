package catalog

import "github.com/sells-group/property-finder/internal/model"

// DefaultRoutes returns the school bus routes the finder was built around.
// Each area is listed under its Japanese and romanized name.
func DefaultRoutes() []model.Route {
	return []model.Route{
		{
			Name: "Pink",
			Tier: model.TierPremium,
			Areas: []string{
				"田園調布", "Denenchofu",
				"目黒", "Meguro",
				"恵比寿", "Ebisu",
				"広尾", "Hiroo",
				"有栖川公園", "Arisugawa Park",
				"御殿山", "Gotenyama",
			},
		},
		{
			Name: "Yellow",
			Tier: model.TierExcellent,
			Areas: []string{
				"等々力", "Todoroki",
				"尾山台", "Oyamadai",
				"都立大学", "Toritsu Daigaku",
				"洗足池", "Senzoku-ike",
			},
		},
		{
			Name: "Green",
			Tier: model.TierGood,
			Areas: []string{
				"三軒茶屋", "Sangenjaya",
				"駒沢大学", "Komazawa Daigaku",
				"駒沢公園", "Komazawa Park",
				"野毛", "Noge",
				"多摩美大前", "Tamabidai-mae",
			},
		},
		{
			Name:  "School",
			Tier:  model.TierDirect,
			Areas: []string{"仲町台", "Nakamachidai"},
		},
	}
}

// Default returns a Catalog built from DefaultRoutes.
func Default() *Catalog {
	c, err := New(DefaultRoutes())
	if err != nil {
		panic(err)
	}
	return c
}
