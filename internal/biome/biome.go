package biome

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/annel0/geography/internal/errkind"
	"gopkg.in/yaml.v3"
)

// Category явно классифицирует биом и выбирает ветку расчёта высоты узла
type Category int

const (
	CategoryLowland Category = iota // равнины, леса, реки, океаны
	CategoryHilly                   // холмы и горы: узлы ближе к поверхности
	CategoryHell                    // адский биом особых миров
	CategorySky                     // небесный/пустотный биом особых миров
)

// RaisesNode сообщает, выбирает ли категория верхний ярус узлов в обычном мире.
// Небесный биом, попав в обычный мир, считается как холмистый.
func (c Category) RaisesNode() bool {
	return c == CategoryHilly || c == CategorySky
}

// String возвращает строковое представление категории
func (c Category) String() string {
	switch c {
	case CategoryLowland:
		return "lowland"
	case CategoryHilly:
		return "hilly"
	case CategoryHell:
		return "hell"
	case CategorySky:
		return "sky"
	default:
		return "unknown"
	}
}

// ParseCategory разбирает строковое имя категории
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lowland", "":
		return CategoryLowland, nil
	case "hilly":
		return CategoryHilly, nil
	case "hell":
		return CategoryHell, nil
	case "sky":
		return CategorySky, nil
	default:
		return CategoryLowland, errkind.InvalidArgument("unknown biome category %q", s)
	}
}

// UnmarshalYAML позволяет задавать категорию строкой в конфиге
func (c *Category) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseCategory(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// MarshalYAML записывает категорию строкой
func (c Category) MarshalYAML() (interface{}, error) {
	return c.String(), nil
}

// Biome описывает биом: порядковый код, имя и категорию
type Biome struct {
	Code     int      `yaml:"code" json:"code"`
	Name     string   `yaml:"name" json:"name"`
	Category Category `yaml:"category" json:"category"`
}

// Catalog хранит таблицу биомов по коду. Безопасна для конкурентного чтения.
type Catalog struct {
	mu     sync.RWMutex
	byCode map[int]Biome
	byName map[string]int
}

// NewCatalog создаёт каталог из списка биомов
func NewCatalog(biomes []Biome) (*Catalog, error) {
	c := &Catalog{
		byCode: make(map[int]Biome),
		byName: make(map[string]int),
	}
	if err := c.Override(biomes); err != nil {
		return nil, err
	}
	return c, nil
}

// Override добавляет или заменяет записи каталога
func (c *Catalog) Override(biomes []Biome) error {
	for _, b := range biomes {
		if b.Code < 0 {
			return errkind.InvalidArgument("biome %q has negative code %d", b.Name, b.Code)
		}
		if b.Name == "" {
			return errkind.InvalidArgument("biome with code %d has empty name", b.Code)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, b := range biomes {
		if old, exists := c.byCode[b.Code]; exists {
			delete(c.byName, old.Name)
		}
		c.byCode[b.Code] = b
		c.byName[b.Name] = b.Code
	}
	return nil
}

// LoadOverrides разбирает YAML-список биомов и применяет его к каталогу
func (c *Catalog) LoadOverrides(data []byte) error {
	var biomes []Biome
	if err := yaml.Unmarshal(data, &biomes); err != nil {
		return fmt.Errorf("ошибка разбора биомов: %w", err)
	}
	return c.Override(biomes)
}

// Lookup возвращает биом по коду. Неизвестный код считается равнинным биомом
// без имени: расчёт высоты узла зависит только от кода и категории.
func (c *Catalog) Lookup(code int) Biome {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if b, ok := c.byCode[code]; ok {
		return b
	}
	return Biome{Code: code, Category: CategoryLowland}
}

// ByName ищет биом по имени
func (c *Catalog) ByName(name string) (Biome, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	code, ok := c.byName[name]
	if !ok {
		return Biome{}, false
	}
	return c.byCode[code], true
}

// Codes возвращает отсортированные коды биомов, удовлетворяющих фильтру
func (c *Catalog) Codes(keep func(Biome) bool) []int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	codes := make([]int, 0, len(c.byCode))
	for code, b := range c.byCode {
		if keep == nil || keep(b) {
			codes = append(codes, code)
		}
	}
	sort.Ints(codes)
	return codes
}

// InCategory возвращает фильтр для Codes по категориям
func InCategory(categories ...Category) func(Biome) bool {
	return func(b Biome) bool {
		for _, c := range categories {
			if b.Category == c {
				return true
			}
		}
		return false
	}
}

// Len возвращает количество биомов в каталоге
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byCode)
}

// MarshalText записывает категорию строкой (JSON)
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText разбирает категорию из строки (JSON)
func (c *Category) UnmarshalText(text []byte) error {
	parsed, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
