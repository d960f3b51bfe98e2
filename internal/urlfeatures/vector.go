package urlfeatures

// FeatureNames lists the vector fields in classifier column order
var FeatureNames = []string{
	"entropy",
	"numDigits",
	"urlLength",
	"numParams",
	"hasHttp",
	"hasHttps",
	"numFragments",
	"numSubDomains",
	"num_%20",
	"num_@",
}

// Vector is the numeric summary of a single URL
type Vector struct {
	Entropy       float64 `json:"entropy"`
	NumDigits     int     `json:"numDigits"`
	URLLength     int     `json:"urlLength"`
	NumParams     int     `json:"numParams"`
	HasHTTP       int     `json:"hasHttp"`
	HasHTTPS      int     `json:"hasHttps"`
	NumFragments  int     `json:"numFragments"`
	NumSubDomains int     `json:"numSubDomains"`
	NumPercent20  int     `json:"num_%20"`
	NumAt         int     `json:"num_@"`
}

// Values returns the fields as a row ordered like FeatureNames
func (v Vector) Values() []float64 {
	return []float64{
		v.Entropy,
		float64(v.NumDigits),
		float64(v.URLLength),
		float64(v.NumParams),
		float64(v.HasHTTP),
		float64(v.HasHTTPS),
		float64(v.NumFragments),
		float64(v.NumSubDomains),
		float64(v.NumPercent20),
		float64(v.NumAt),
	}
}

// Named returns the fields keyed by feature name
func (v Vector) Named() map[string]float64 {
	values := v.Values()
	out := make(map[string]float64, len(values))
	for i, name := range FeatureNames {
		out[name] = values[i]
	}
	return out
}

// Matrix stacks vectors into classifier input rows
func Matrix(vectors []Vector) [][]float64 {
	rows := make([][]float64, len(vectors))
	for i, v := range vectors {
		rows[i] = v.Values()
	}
	return rows
}
