// Package store owns the four JSON tables the harvester maintains. the files
// are a contract shared with the rest of the toolchain: flat arrays, spanish
// field names, valid JSON after every successful run.
package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"agroprecios-harvester/lib/textutil"
)

type Auction struct {
	Id     int    `json:"id"`
	Nombre string `json:"nombre"`
}

type Family struct {
	Id     int    `json:"id"`
	Nombre string `json:"nombre"`
}

type Product struct {
	Id        int     `json:"id"`
	FamiliaId int     `json:"familia_id"`
	Nombre    string  `json:"nombre"`
	Url       *string `json:"url"`
}

type PriceFact struct {
	SubastaId  int    `json:"subasta_id"`
	Fecha      string `json:"fecha"`
	ProductoId int    `json:"producto_id"`
	Corte      int    `json:"corte"`
	Precio     int    `json:"precio"`
}

const (
	auctionsFile = "subastas.json"
	familiesFile = "familias.json"
	productsFile = "productos.json"
	pricesFile   = "preciosubasta.json"
)

type productKey struct {
	familiaId int
	nombre    string
}

type factKey struct {
	subastaId  int
	fecha      string
	productoId int
	corte      int
}

// Store keeps all four tables in memory between Open and Save. lookups go
// through indexes keyed on the composite uniqueness tuples; the slices keep
// arrival order so local ids stay deterministic across replays.
type Store struct {
	dataDir string

	auctions []*Auction
	families []*Family
	products []*Product
	facts    []PriceFact

	auctionsById   map[int]*Auction
	familiesByName map[string]*Family
	productsByKey  map[productKey]*Product
	factKeys       map[factKey]struct{}

	nextFamilyId  int
	nextProductId int
}

// Open loads all four tables. missing files mean empty tables; files that
// exist but cannot be read or parsed are an error, continuing would risk
// re-assigning ids that are already taken on disk.
func Open(dataDir string) (*Store, error) {
	err := os.MkdirAll(dataDir, 0777)
	if err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	s := &Store{
		dataDir:        dataDir,
		auctionsById:   map[int]*Auction{},
		familiesByName: map[string]*Family{},
		productsByKey:  map[productKey]*Product{},
		factKeys:       map[factKey]struct{}{},
		nextFamilyId:   1,
		nextProductId:  1,
	}

	err = loadTable(filepath.Join(dataDir, auctionsFile), &s.auctions)
	if err != nil {
		return nil, err
	}
	err = loadTable(filepath.Join(dataDir, familiesFile), &s.families)
	if err != nil {
		return nil, err
	}
	err = loadTable(filepath.Join(dataDir, productsFile), &s.products)
	if err != nil {
		return nil, err
	}
	err = loadTable(filepath.Join(dataDir, pricesFile), &s.facts)
	if err != nil {
		return nil, err
	}

	for _, a := range s.auctions {
		s.auctionsById[a.Id] = a
	}
	for _, f := range s.families {
		s.familiesByName[textutil.NormalizeName(f.Nombre)] = f
		if f.Id >= s.nextFamilyId {
			s.nextFamilyId = f.Id + 1
		}
	}
	for _, p := range s.products {
		s.productsByKey[productKey{p.FamiliaId, textutil.NormalizeName(p.Nombre)}] = p
		if p.Id >= s.nextProductId {
			s.nextProductId = p.Id + 1
		}
	}
	for _, fact := range s.facts {
		s.factKeys[factKey{fact.SubastaId, fact.Fecha, fact.ProductoId, fact.Corte}] = struct{}{}
	}

	return s, nil
}

func loadTable[T any](path string, out *[]T) error {
	contents, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	err = json.Unmarshal(contents, out)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// UpsertAuction records an auction under its externally supplied id. a changed
// non-empty display name overwrites the stored one.
func (s *Store) UpsertAuction(id int, nombre string) (created bool) {
	nombre = textutil.CleanDisplayName(nombre)

	stored, exists := s.auctionsById[id]
	if !exists {
		record := &Auction{Id: id, Nombre: nombre}
		s.auctions = append(s.auctions, record)
		s.auctionsById[id] = record
		return true
	}

	if nombre != "" && stored.Nombre != nombre {
		stored.Nombre = nombre
	}
	return false
}

// ResolveFamily returns the id of the family matching the normalized name,
// creating it when absent.
func (s *Store) ResolveFamily(nombre string) (id int, created bool) {
	key := textutil.NormalizeName(nombre)
	if existing, exists := s.familiesByName[key]; exists {
		return existing.Id, false
	}

	record := &Family{Id: s.nextFamilyId, Nombre: textutil.CleanDisplayName(nombre)}
	s.nextFamilyId++
	s.families = append(s.families, record)
	s.familiesByName[key] = record
	return record.Id, true
}

// ResolveProduct returns the id of the product matching (familiaId, normalized
// name), creating it when absent. an empty url means "unknown"; a known url
// fills in a stored unknown one but never replaces an existing value.
func (s *Store) ResolveProduct(familiaId int, nombre string, url string) (id int, created bool) {
	key := productKey{familiaId, textutil.NormalizeName(nombre)}
	if existing, exists := s.productsByKey[key]; exists {
		if url != "" && existing.Url == nil {
			existing.Url = &url
		}
		return existing.Id, false
	}

	record := &Product{
		Id:        s.nextProductId,
		FamiliaId: familiaId,
		Nombre:    textutil.CleanDisplayName(nombre),
	}
	if url != "" {
		record.Url = &url
	}
	s.nextProductId++
	s.products = append(s.products, record)
	s.productsByKey[key] = record
	return record.Id, true
}

// InsertPrice appends a price fact unless its composite key already exists.
// facts are never updated; a colliding price is discarded.
func (s *Store) InsertPrice(subastaId int, fecha string, productoId, corte, precio int) (inserted bool) {
	key := factKey{subastaId, fecha, productoId, corte}
	if _, exists := s.factKeys[key]; exists {
		return false
	}

	s.facts = append(s.facts, PriceFact{
		SubastaId:  subastaId,
		Fecha:      fecha,
		ProductoId: productoId,
		Corte:      corte,
		Precio:     precio,
	})
	s.factKeys[key] = struct{}{}
	return true
}

func (s *Store) DataDir() string {
	return s.dataDir
}

// Save rewrites all four table files. each one is written to a temp file in
// the data dir and renamed over the old table, so a crash mid-save leaves
// every table either fully old or fully new.
func (s *Store) Save() error {
	err := saveTable(filepath.Join(s.dataDir, auctionsFile), s.auctions)
	if err != nil {
		return err
	}
	err = saveTable(filepath.Join(s.dataDir, familiesFile), s.families)
	if err != nil {
		return err
	}
	err = saveTable(filepath.Join(s.dataDir, productsFile), s.products)
	if err != nil {
		return err
	}
	return saveTable(filepath.Join(s.dataDir, pricesFile), s.facts)
}

func saveTable[T any](path string, table []T) error {
	if table == nil {
		// an empty table still has to be a valid JSON array
		table = []T{}
	}

	var buffer bytes.Buffer
	encoder := json.NewEncoder(&buffer)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	err := encoder.Encode(table)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	_, err = tmp.Write(buffer.Bytes())
	if err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	err = tmp.Close()
	if err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close %s: %w", path, err)
	}

	err = os.Rename(tmp.Name(), path)
	if err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
