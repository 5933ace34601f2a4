package entities

// SeedStandardMenu is a catalog row shipped with `menu init --seed`.
type SeedStandardMenu struct {
	Name     string
	Category string
}

// DefaultCatalog is a small Korean dish catalog used for demos and tests.
var DefaultCatalog = []SeedStandardMenu{
	{Name: "김치찌개", Category: "한식-찌개"},
	{Name: "된장찌개", Category: "한식-찌개"},
	{Name: "순두부찌개", Category: "한식-찌개"},
	{Name: "부대찌개", Category: "한식-찌개"},
	{Name: "청국장", Category: "한식-찌개"},
	{Name: "비빔밥", Category: "한식-밥"},
	{Name: "돌솥비빔밥", Category: "한식-밥"},
	{Name: "김치볶음밥", Category: "한식-밥"},
	{Name: "제육덮밥", Category: "한식-밥"},
	{Name: "삼겹살", Category: "한식-고기"},
	{Name: "목살", Category: "한식-고기"},
	{Name: "갈비", Category: "한식-고기"},
	{Name: "불고기", Category: "한식-고기"},
	{Name: "짜장면", Category: "중식"},
	{Name: "짬뽕", Category: "중식"},
	{Name: "탕수육", Category: "중식"},
	{Name: "볶음밥", Category: "중식"},
	{Name: "치킨", Category: "치킨"},
	{Name: "후라이드치킨", Category: "치킨"},
	{Name: "양념치킨", Category: "치킨"},
	{Name: "간장치킨", Category: "치킨"},
	{Name: "두마리치킨", Category: "치킨"},
	{Name: "반반치킨", Category: "치킨"},
	{Name: "순살치킨", Category: "치킨"},
}
