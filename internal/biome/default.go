package biome

// Классический набор биомов: код равен порядковому номеру.
// Холмистыми отмечены горы, холмы, болота, леса, пустыни, равнины и грибные
// острова: в них узлы поднимаются ближе к поверхности. Остальные наземные
// биомы (тайга, океаны, реки, пляжи, джунгли) получают глубокий ярус.
var defaultBiomes = []Biome{
	{Code: 0, Name: "SWAMPLAND", Category: CategoryHilly},
	{Code: 1, Name: "FOREST", Category: CategoryHilly},
	{Code: 2, Name: "TAIGA", Category: CategoryLowland},
	{Code: 3, Name: "DESERT", Category: CategoryHilly},
	{Code: 4, Name: "PLAINS", Category: CategoryHilly},
	{Code: 5, Name: "HELL", Category: CategoryHell},
	{Code: 6, Name: "SKY", Category: CategorySky},
	{Code: 7, Name: "OCEAN", Category: CategoryLowland},
	{Code: 8, Name: "RIVER", Category: CategoryLowland},
	{Code: 9, Name: "EXTREME_HILLS", Category: CategoryHilly},
	{Code: 10, Name: "FROZEN_OCEAN", Category: CategoryLowland},
	{Code: 11, Name: "FROZEN_RIVER", Category: CategoryLowland},
	{Code: 12, Name: "ICE_PLAINS", Category: CategoryHilly},
	{Code: 13, Name: "ICE_MOUNTAINS", Category: CategoryHilly},
	{Code: 14, Name: "MUSHROOM_ISLAND", Category: CategoryHilly},
	{Code: 15, Name: "MUSHROOM_SHORE", Category: CategoryHilly},
	{Code: 16, Name: "BEACH", Category: CategoryLowland},
	{Code: 17, Name: "DESERT_HILLS", Category: CategoryHilly},
	{Code: 18, Name: "FOREST_HILLS", Category: CategoryHilly},
	{Code: 19, Name: "TAIGA_HILLS", Category: CategoryHilly},
	{Code: 20, Name: "SMALL_MOUNTAINS", Category: CategoryHilly},
	{Code: 21, Name: "JUNGLE", Category: CategoryLowland},
	{Code: 22, Name: "JUNGLE_HILLS", Category: CategoryHilly},
}

// DefaultCatalog возвращает каталог стандартных биомов
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(defaultBiomes)
	if err != nil {
		// Таблица статическая, ошибка здесь означает опечатку в коде
		panic(err)
	}
	return c
}
