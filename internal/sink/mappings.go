// SearchSync - Film Catalog CDC Search Indexing Pipeline
// Copyright 2026 OpenKino contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openkino/searchsync

package sink

// Index names on the search backend.
const (
	IndexMovies  = "movies"
	IndexPersons = "persons"
	IndexGenres  = "genres"
)

// analysisSettings is the shared index settings block: a single ru_en
// analyzer (lowercase + English/Russian stop and stemmer) covering all
// text fields.
const analysisSettings = `{
  "refresh_interval": "1s",
  "number_of_shards": "1",
  "number_of_replicas": "1",
  "analysis": {
    "filter": {
      "english_stop": {"type": "stop", "stopwords": "_english_"},
      "english_stemmer": {"type": "stemmer", "language": "english"},
      "english_possessive_stemmer": {"type": "stemmer", "language": "possessive_english"},
      "russian_stop": {"type": "stop", "stopwords": "_russian_"},
      "russian_stemmer": {"type": "stemmer", "language": "russian"}
    },
    "analyzer": {
      "ru_en": {
        "tokenizer": "standard",
        "filter": [
          "lowercase",
          "english_stop",
          "english_stemmer",
          "english_possessive_stemmer",
          "russian_stop",
          "russian_stemmer"
        ]
      }
    }
  }
}`

// moviesMapping is the strict-dynamic `movies` index body. The four
// person/genre lists are nested {id: keyword, name: text}; every *_names
// mirror is plain text under the ru_en analyzer.
const moviesMapping = `{
  "settings": {"index": ` + analysisSettings + `},
  "mappings": {
    "dynamic": "strict",
    "properties": {
      "id": {"type": "keyword"},
      "title": {
        "type": "text",
        "analyzer": "ru_en",
        "fields": {"raw": {"type": "keyword"}}
      },
      "description": {"type": "text", "analyzer": "ru_en"},
      "imdb_rating": {"type": "float"},
      "actors": {
        "type": "nested",
        "dynamic": "strict",
        "properties": {
          "id": {"type": "keyword"},
          "name": {"type": "text", "analyzer": "ru_en"}
        }
      },
      "actors_names": {"type": "text", "analyzer": "ru_en"},
      "writers": {
        "type": "nested",
        "dynamic": "strict",
        "properties": {
          "id": {"type": "keyword"},
          "name": {"type": "text", "analyzer": "ru_en"}
        }
      },
      "writers_names": {"type": "text", "analyzer": "ru_en"},
      "directors": {
        "type": "nested",
        "dynamic": "strict",
        "properties": {
          "id": {"type": "keyword"},
          "name": {"type": "text", "analyzer": "ru_en"}
        }
      },
      "directors_names": {"type": "text", "analyzer": "ru_en"},
      "genres": {
        "type": "nested",
        "dynamic": "strict",
        "properties": {
          "id": {"type": "keyword"},
          "name": {"type": "text", "analyzer": "ru_en"}
        }
      },
      "genres_names": {"type": "text", "analyzer": "ru_en"}
    }
  }
}`

// personsMapping is the strict-dynamic `persons` index body.
const personsMapping = `{
  "settings": {"index": ` + analysisSettings + `},
  "mappings": {
    "dynamic": "strict",
    "properties": {
      "id": {"type": "keyword"},
      "name": {"type": "text", "analyzer": "ru_en"},
      "role": {"type": "keyword"},
      "film_ids": {"type": "keyword"}
    }
  }
}`

// genresMapping is the strict-dynamic `genres` index body. Created only
// when the genres index is enabled.
const genresMapping = `{
  "settings": {"index": ` + analysisSettings + `},
  "mappings": {
    "dynamic": "strict",
    "properties": {
      "id": {"type": "keyword"},
      "name": {"type": "text", "analyzer": "ru_en", "fields": {"raw": {"type": "keyword"}}},
      "description": {"type": "text", "analyzer": "ru_en"},
      "film_ids": {"type": "keyword"}
    }
  }
}`

// indexMappings maps index name to creation body.
var indexMappings = map[string]string{
	IndexMovies:  moviesMapping,
	IndexPersons: personsMapping,
	IndexGenres:  genresMapping,
}
