package catalog

var sizes = map[string][]string{"Ukuran": {"S", "M", "L", "XL"}}

// SeedProducts is the launch catalog of campus merchandise.
func SeedProducts() []Product {
	return []Product{
		{
			Name:        "Kaos Kitversity",
			Description: "Kaos katun combed 30s dengan logo kampus.",
			Price:       45000,
			Stock:       120,
			Image:       "/images/products/kaos.jpg",
			Categories:  []string{"pakaian"},
			Variants:    sizes,
		},
		{
			Name:        "Hoodie Angkatan",
			Description: "Hoodie fleece tebal, bordir nama angkatan.",
			Price:       185000,
			Stock:       40,
			Image:       "/images/products/hoodie.jpg",
			Categories:  []string{"pakaian"},
			Variants:    map[string][]string{"Ukuran": {"M", "L", "XL"}, "Warna": {"Hitam", "Navy"}},
		},
		{
			Name:        "Topi Baseball",
			Description: "Topi baseball dengan bordir logo.",
			Price:       30000,
			Stock:       80,
			Image:       "/images/products/topi.jpg",
			Categories:  []string{"aksesoris"},
		},
		{
			Name:        "Totebag Kanvas",
			Description: "Totebag kanvas untuk kuliah sehari-hari.",
			Price:       25000,
			Stock:       150,
			Image:       "/images/products/totebag.jpg",
			Categories:  []string{"aksesoris", "tas"},
		},
		{
			Name:        "Lanyard & ID Card Holder",
			Description: "Lanyard printing dua sisi dengan holder.",
			Price:       15000,
			Stock:       300,
			Image:       "/images/products/lanyard.jpg",
			Categories:  []string{"aksesoris"},
		},
		{
			Name:        "Jas Almamater",
			Description: "Jas almamater resmi, bahan drill.",
			Price:       250000,
			Stock:       60,
			Image:       "/images/products/almamater.jpg",
			Categories:  []string{"pakaian", "resmi"},
			Variants:    sizes,
		},
	}
}
