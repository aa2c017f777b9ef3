package trigger

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/sensor"
)

// Centroid is the mean feature vector of one class.
type Centroid struct {
	Class       Class   `json:"class"`
	VOC         float64 `json:"voc"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Samples     int     `json:"samples"`
}

// FeatureScale normalises each feature before distances are taken.
type FeatureScale struct {
	VOC         float64 `json:"voc"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
}

// CentroidModel is a nearest-centroid VOC classifier trained offline from
// labelled sensor logs.
type CentroidModel struct {
	Name      string       `json:"name"`
	Version   string       `json:"version"`
	Scale     FeatureScale `json:"scale"`
	Centroids []Centroid   `json:"centroids"`
}

// ErrEmptyModel is returned when a model has no centroids.
var ErrEmptyModel = errors.New("model has no centroids")

// LoadCentroidModel reads a model written by SaveCentroidModel.
func LoadCentroidModel(path string) (*CentroidModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	var m CentroidModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if len(m.Centroids) == 0 {
		return nil, ErrEmptyModel
	}
	return &m, nil
}

// SaveCentroidModel writes m as indented JSON.
func SaveCentroidModel(path string, m *CentroidModel) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode model: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write model: %w", err)
	}
	return nil
}

// Classify returns the nearest centroid's class. Confidence is the share of
// the runner-up distance in the sum of the two closest distances, so it is
// 0.5 on a tie and approaches 1 as the nearest centroid dominates.
func (m *CentroidModel) Classify(voc uint32, temperature, humidity float64) (Classification, error) {
	if m == nil || len(m.Centroids) == 0 {
		return Classification{Class: ClassUnknown}, ErrEmptyModel
	}

	type scored struct {
		class Class
		dist  float64
	}
	dists := make([]scored, 0, len(m.Centroids))
	for _, c := range m.Centroids {
		dv := (float64(voc) - c.VOC) / nonZero(m.Scale.VOC)
		dt := (temperature - c.Temperature) / nonZero(m.Scale.Temperature)
		dh := (humidity - c.Humidity) / nonZero(m.Scale.Humidity)
		dists = append(dists, scored{c.Class, math.Sqrt(dv*dv + dt*dt + dh*dh)})
	}
	sort.SliceStable(dists, func(i, j int) bool { return dists[i].dist < dists[j].dist })

	if len(dists) == 1 {
		return Classification{Class: dists[0].class, Confidence: 1}, nil
	}
	d1, d2 := dists[0].dist, dists[1].dist
	if d1+d2 == 0 {
		return Classification{Class: dists[0].class, Confidence: 0.5}, nil
	}
	return Classification{Class: dists[0].class, Confidence: d2 / (d1 + d2)}, nil
}

// Info describes the model.
func (m *CentroidModel) Info() ModelInfo {
	if m == nil {
		return ModelInfo{}
	}
	return ModelInfo{Name: m.Name, Version: m.Version, Loaded: len(m.Centroids) > 0}
}

// TrainCentroids builds a model from labelled samples. Samples whose label
// does not map to a class are skipped.
func TrainCentroids(name, version string, samples []sensor.VOCSample) (*CentroidModel, error) {
	sums := make(map[Class]*Centroid)
	var used []sensor.VOCSample
	for _, s := range samples {
		class, err := ParseClassLabel(s.Label)
		if err != nil {
			continue
		}
		c, ok := sums[class]
		if !ok {
			c = &Centroid{Class: class}
			sums[class] = c
		}
		c.VOC += float64(s.VOC)
		c.Temperature += s.Temperature
		c.Humidity += s.Humidity
		c.Samples++
		used = append(used, s)
	}
	if len(sums) == 0 {
		return nil, ErrEmptyModel
	}

	m := &CentroidModel{Name: name, Version: version}
	for _, c := range sums {
		n := float64(c.Samples)
		c.VOC /= n
		c.Temperature /= n
		c.Humidity /= n
		m.Centroids = append(m.Centroids, *c)
	}
	sort.Slice(m.Centroids, func(i, j int) bool { return m.Centroids[i].Class < m.Centroids[j].Class })

	m.Scale = FeatureScale{
		VOC:         stddev(used, func(s sensor.VOCSample) float64 { return float64(s.VOC) }),
		Temperature: stddev(used, func(s sensor.VOCSample) float64 { return s.Temperature }),
		Humidity:    stddev(used, func(s sensor.VOCSample) float64 { return s.Humidity }),
	}
	return m, nil
}

func stddev(samples []sensor.VOCSample, f func(sensor.VOCSample) float64) float64 {
	if len(samples) < 2 {
		return 1
	}
	var mean float64
	for _, s := range samples {
		mean += f(s)
	}
	mean /= float64(len(samples))
	var sq float64
	for _, s := range samples {
		d := f(s) - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(samples)-1))
}

func nonZero(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}
