package regions

// Code is a first-level administrative division name as the emergency feed expects it in STAGE1
type Code string

const (
	Seoul     Code = "서울특별시"
	Busan     Code = "부산광역시"
	Daegu     Code = "대구광역시"
	Incheon   Code = "인천광역시"
	Gwangju   Code = "광주광역시"
	Daejeon   Code = "대전광역시"
	Ulsan     Code = "울산광역시"
	Sejong    Code = "세종특별자치시"
	Gyeonggi  Code = "경기도"
	Gangwon   Code = "강원특별자치도"
	Chungbuk  Code = "충청북도"
	Chungnam  Code = "충청남도"
	Jeonbuk   Code = "전북특별자치도"
	Jeonnam   Code = "전라남도"
	Gyeongbuk Code = "경상북도"
	Gyeongnam Code = "경상남도"
	Jeju      Code = "제주특별자치도"
)

// Extent is a padded bounding box around one administrative region
type Extent struct {
	Region Code
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// DefaultExtents covers South Korea including the outlying islands
// (Baengnyeong, Gageo, Marado, Ulleung, Dokdo). Boxes are deliberately loose.
var DefaultExtents = []Extent{
	{Region: Seoul, MinLat: 37.41, MaxLat: 37.72, MinLon: 126.75, MaxLon: 127.20},
	{Region: Busan, MinLat: 34.87, MaxLat: 35.40, MinLon: 128.75, MaxLon: 129.32},
	{Region: Daegu, MinLat: 35.60, MaxLat: 36.32, MinLon: 128.34, MaxLon: 128.80},
	{Region: Incheon, MinLat: 37.00, MaxLat: 37.99, MinLon: 124.60, MaxLon: 126.80},
	{Region: Gwangju, MinLat: 35.05, MaxLat: 35.27, MinLon: 126.63, MaxLon: 127.03},
	{Region: Daejeon, MinLat: 36.18, MaxLat: 36.50, MinLon: 127.24, MaxLon: 127.56},
	{Region: Ulsan, MinLat: 35.32, MaxLat: 35.74, MinLon: 128.96, MaxLon: 129.47},
	{Region: Sejong, MinLat: 36.40, MaxLat: 36.74, MinLon: 127.13, MaxLon: 127.41},
	{Region: Gyeonggi, MinLat: 36.89, MaxLat: 38.30, MinLon: 126.37, MaxLon: 127.86},
	{Region: Gangwon, MinLat: 37.02, MaxLat: 38.62, MinLon: 127.08, MaxLon: 129.37},
	{Region: Chungbuk, MinLat: 35.99, MaxLat: 37.27, MinLon: 127.26, MaxLon: 128.66},
	{Region: Chungnam, MinLat: 35.97, MaxLat: 37.08, MinLon: 125.90, MaxLon: 127.65},
	{Region: Jeonbuk, MinLat: 35.28, MaxLat: 36.16, MinLon: 125.95, MaxLon: 127.92},
	{Region: Jeonnam, MinLat: 33.85, MaxLat: 35.51, MinLon: 124.95, MaxLon: 127.91},
	{Region: Gyeongbuk, MinLat: 35.56, MaxLat: 37.56, MinLon: 127.79, MaxLon: 131.90},
	{Region: Gyeongnam, MinLat: 34.45, MaxLat: 35.92, MinLon: 127.55, MaxLon: 129.23},
	{Region: Jeju, MinLat: 33.08, MaxLat: 34.02, MinLon: 126.08, MaxLon: 127.00},
}
