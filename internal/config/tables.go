package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Tables holds the domain vocabulary used by corpus scanning and query analysis:
// the reference book catalog, query type rules, synonyms, and known concepts.
// A Tables value is built once at startup and shared read-only.
type Tables struct {
	Books         []BookProfile     `yaml:"books"`
	QueryRules    []QueryRule       `yaml:"query_rules"`
	Synonyms      []Synonym         `yaml:"synonyms"`
	Concepts      []string          `yaml:"concepts"`
	Categories    []ConceptCategory `yaml:"categories"`
	ConceptWeight float64           `yaml:"concept_weight"`
	KeywordWeight float64           `yaml:"keyword_weight"`
}

// BookProfile describes one known reference book.
type BookProfile struct {
	Code             string   `yaml:"code"`
	Title            string   `yaml:"title"`
	Author           string   `yaml:"author"`
	FilenamePatterns []string `yaml:"filename_patterns"`
	Concepts         []string `yaml:"concepts"`
	Keywords         []string `yaml:"keywords"`
}

// QueryRule maps surface patterns to a query type. Rules are evaluated in order.
type QueryRule struct {
	Type     string   `yaml:"type"`
	Patterns []string `yaml:"patterns"`
}

// Synonym relates a domain term to alternative phrasings.
type Synonym struct {
	Term    string   `yaml:"term"`
	Related []string `yaml:"related"`
}

// ConceptCategory groups concepts containing any of Markers.
type ConceptCategory struct {
	Name    string   `yaml:"name"`
	Markers []string `yaml:"markers"`
}

// UnknownBookCode is assigned to books that match no catalog profile.
const UnknownBookCode = "unknown"

// LoadTables returns the built-in tables, or the tables in the YAML file at path
// when path is set. Sections missing from the file fall back to the built-in ones.
func LoadTables(path string) (*Tables, error) {
	def := DefaultTables()
	if path == "" {
		return def, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tables: %w", err)
	}
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse tables: %w", err)
	}
	if len(t.Books) == 0 {
		t.Books = def.Books
	}
	if len(t.QueryRules) == 0 {
		t.QueryRules = def.QueryRules
	}
	if len(t.Synonyms) == 0 {
		t.Synonyms = def.Synonyms
	}
	if len(t.Concepts) == 0 {
		t.Concepts = def.Concepts
	}
	if len(t.Categories) == 0 {
		t.Categories = def.Categories
	}
	if t.ConceptWeight == 0 {
		t.ConceptWeight = def.ConceptWeight
	}
	if t.KeywordWeight == 0 {
		t.KeywordWeight = def.KeywordWeight
	}
	return &t, nil
}

// Book returns the profile with the given code, or nil.
func (t *Tables) Book(code string) *BookProfile {
	for i := range t.Books {
		if t.Books[i].Code == code {
			return &t.Books[i]
		}
	}
	return nil
}

// MatchFilename returns the first profile whose filename patterns occur in name
// (case-insensitive), or nil when none does.
func (t *Tables) MatchFilename(name string) *BookProfile {
	lower := strings.ToLower(name)
	for i := range t.Books {
		for _, p := range t.Books[i].FilenamePatterns {
			if strings.Contains(lower, p) {
				return &t.Books[i]
			}
		}
	}
	return nil
}

// DefaultTables returns the built-in vocabulary for the computer vision reference corpus.
func DefaultTables() *Tables {
	return &Tables{
		Books: []BookProfile{
			{
				Code:             "gonzalez",
				Title:            "Digital Image Processing - Gonzalez & Woods",
				Author:           "Rafael C. Gonzalez, Richard E. Woods",
				FilenamePatterns: []string{"gonzalez", "woods", "digital_image_processing", "dip"},
				Concepts:         []string{"convolução", "filtro", "histograma", "limiarização", "morfologia"},
				Keywords:         []string{"processamento", "filtro", "transformada", "morfologia"},
			},
			{
				Code:             "szeliski",
				Title:            "Computer Vision Algorithms and Applications - Szeliski",
				Author:           "Richard Szeliski",
				FilenamePatterns: []string{"szeliski", "computer_vision", "algorithms_applications"},
				Concepts:         []string{"câmera", "calibração", "stereo", "movimento"},
				Keywords:         []string{"visão", "câmera", "estéreo", "movimento", "3d"},
			},
			{
				Code:             "goodfellow",
				Title:            "Deep Learning - Goodfellow, Bengio & Courville",
				Author:           "Ian Goodfellow, Yoshua Bengio, Aaron Courville",
				FilenamePatterns: []string{"goodfellow", "deep_learning", "bengio", "courville"},
				Concepts:         []string{"backpropagation", "otimização", "regularização", "dropout"},
				Keywords:         []string{"deep", "neural", "learning", "cnn", "rede"},
			},
			{
				Code:             "bishop",
				Title:            "Pattern Recognition and Machine Learning - Bishop",
				Author:           "Christopher M. Bishop",
				FilenamePatterns: []string{"bishop", "pattern_recognition", "machine_learning", "prml"},
				Concepts:         []string{"bayes", "probabilidade", "classificação", "clustering"},
				Keywords:         []string{"machine", "pattern", "probabilidade", "bayes", "classificação"},
			},
		},
		QueryRules: []QueryRule{
			{Type: "concept", Patterns: []string{"o que é", "what is", "define", "definição", "conceito", "significa", "explique"}},
			{Type: "algorithm", Patterns: []string{"algoritmo", "algorithm", "método", "técnica", "como funciona", "funcionamento"}},
			{Type: "implementation", Patterns: []string{"como implementar", "implementação", "código", "como fazer", "passos", "tutorial"}},
			{Type: "theory", Patterns: []string{"matemática", "fórmula", "equação", "teoria", "mathematical", "formula", "equation"}},
			{Type: "comparison", Patterns: []string{"diferença", "vs", "versus", "comparar", "melhor que", "difference", "compare"}},
		},
		Synonyms: []Synonym{
			{Term: "imagem", Related: []string{"image", "figura", "picture", "foto"}},
			{Term: "pixel", Related: []string{"elemento", "ponto", "sample"}},
			{Term: "resolução", Related: []string{"resolution", "tamanho", "dimensão"}},
			{Term: "rgb", Related: []string{"red green blue", "vermelho verde azul"}},
			{Term: "hsv", Related: []string{"hue saturation value", "matiz saturação valor"}},
			{Term: "cinza", Related: []string{"gray", "grayscale", "escala de cinza"}},
			{Term: "convolução", Related: []string{"convolution", "kernel", "máscara"}},
			{Term: "gaussiano", Related: []string{"gaussian", "gauss", "suavização"}},
			{Term: "sobel", Related: []string{"detecção borda", "edge detection", "gradiente"}},
			{Term: "laplaciano", Related: []string{"laplacian", "segunda derivada"}},
			{Term: "média", Related: []string{"average", "mean", "suavização"}},
			{Term: "histograma", Related: []string{"histogram", "distribuição intensidade"}},
			{Term: "erosão", Related: []string{"erosion", "erode", "morfologia"}},
			{Term: "dilatação", Related: []string{"dilation", "dilate", "morfologia"}},
			{Term: "abertura", Related: []string{"opening", "morfologia"}},
			{Term: "fechamento", Related: []string{"closing", "morfologia"}},
			{Term: "limiarização", Related: []string{"thresholding", "threshold", "binarização"}},
			{Term: "otsu", Related: []string{"limiar automático", "automatic threshold"}},
			{Term: "canny", Related: []string{"detecção borda", "edge detection"}},
			{Term: "watershed", Related: []string{"segmentação", "bacias hidrográficas"}},
			{Term: "sift", Related: []string{"scale invariant", "pontos interesse", "keypoints"}},
			{Term: "surf", Related: []string{"speeded up", "pontos interesse"}},
			{Term: "hog", Related: []string{"histogram oriented gradients", "gradientes"}},
			{Term: "lbp", Related: []string{"local binary patterns", "padrões binários"}},
			{Term: "cnn", Related: []string{"convolutional neural", "rede neural convolucional"}},
			{Term: "pooling", Related: []string{"agrupamento", "redução dimensional"}},
			{Term: "dropout", Related: []string{"regularização", "regularization"}},
			{Term: "backpropagation", Related: []string{"retropropagação", "treinamento"}},
			{Term: "yolo", Related: []string{"you only look once", "detecção objetos"}},
			{Term: "rcnn", Related: []string{"region cnn", "detecção objetos"}},
			{Term: "mask rcnn", Related: []string{"segmentação instância", "instance segmentation"}},
		},
		Concepts: []string{
			"amostragem", "quantização", "imagem-digital", "pixel", "rgb", "hsv", "escala-cinza", "espaços-cor",
			"convolução", "filtro-gaussiano", "filtro-media", "sobel", "prewitt", "laplaciano", "detecção-bordas",
			"histograma", "equalização", "clahe",
			"erosão", "dilatação", "abertura", "fechamento", "morfologia-matemática", "watershed",
			"limiarização", "otsu", "canny", "hough", "segmentação", "crescimento-regiões",
			"sift", "surf", "orb", "fast", "hog", "lbp", "descritores", "pontos-interesse", "matching",
			"cnn", "redes-neurais", "backpropagation", "dropout", "batch-normalization", "transfer-learning",
			"yolo", "rcnn", "unet", "segmentação-semântica",
		},
		Categories: []ConceptCategory{
			{Name: "Fundamentos", Markers: []string{"imagem", "pixel", "rgb", "hsv", "cinza"}},
			{Name: "Filtros", Markers: []string{"filtro", "gaussiano", "sobel", "laplaciano"}},
			{Name: "Segmentação", Markers: []string{"segmentação", "limiarização", "otsu", "canny", "hough"}},
			{Name: "Morfologia", Markers: []string{"erosão", "dilatação", "abertura", "fechamento", "morfologia"}},
			{Name: "Características", Markers: []string{"sift", "surf", "orb", "hog", "lbp"}},
			{Name: "Deep Learning", Markers: []string{"cnn", "yolo", "rcnn", "unet"}},
		},
		ConceptWeight: 1.0,
		KeywordWeight: 0.5,
	}
}
