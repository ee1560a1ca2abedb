//go:build js && wasm

package main

import (
	"encoding/json"
	"sort"
	"strings"
	"syscall/js"

	"docrag/internal/adapter/graph"
	"docrag/internal/domain"
)

// In-browser link graph explorer. Documents are added as path/content
// string pairs and the graph is rebuilt on every mutation, which is
// cheap at the corpus sizes a browser session holds. Semantic search
// is not exposed here: embeddings require the remote embedding API.

var (
	contents = make(map[string]string)
	docs     map[string]domain.Document
)

func main() {
	c := make(chan struct{})

	js.Global().Set("docragAdd", js.FuncOf(addDoc))
	js.Global().Set("docragRemove", js.FuncOf(removeDoc))
	js.Global().Set("docragLinks", js.FuncOf(linksOf))
	js.Global().Set("docragTitles", js.FuncOf(searchTitles))
	js.Global().Set("docragGraph", js.FuncOf(wholeGraph))
	js.Global().Set("docragClear", js.FuncOf(clearDocs))

	<-c
}

func rebuild() {
	docs = graph.BuildFromContents(contents)
}

func addDoc(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return makeError("usage: docragAdd(path, content)")
	}

	path := args[0].String()
	contents[path] = args[1].String()
	rebuild()

	doc := docs[path]
	return makeResult(map[string]interface{}{
		"success":  true,
		"path":     path,
		"title":    doc.Title,
		"outgoing": len(doc.Outgoing),
	})
}

func removeDoc(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return makeError("usage: docragRemove(path)")
	}

	path := args[0].String()
	if _, ok := contents[path]; !ok {
		return makeError("unknown document: " + path)
	}
	delete(contents, path)
	rebuild()

	return makeResult(map[string]interface{}{
		"success": true,
		"path":    path,
	})
}

func linksOf(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return makeError("usage: docragLinks(path)")
	}

	path := args[0].String()
	doc, ok := docs[path]
	if !ok {
		return makeError("unknown document: " + path)
	}

	return makeResult(map[string]interface{}{
		"path":     path,
		"title":    doc.Title,
		"outgoing": stringList(doc.Outgoing),
		"incoming": stringList(doc.Incoming),
	})
}

func searchTitles(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return makeError("usage: docragTitles(substring)")
	}

	needle := strings.ToLower(args[0].String())
	matches := make([]map[string]interface{}, 0)
	for path, doc := range docs {
		if strings.Contains(strings.ToLower(doc.Title), needle) {
			matches = append(matches, map[string]interface{}{
				"path":  path,
				"title": doc.Title,
			})
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i]["path"].(string) < matches[j]["path"].(string)
	})

	return makeResult(map[string]interface{}{
		"matches": matches,
	})
}

func wholeGraph(this js.Value, args []js.Value) interface{} {
	paths := make([]string, 0, len(docs))
	for path := range docs {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	nodes := make([]map[string]interface{}, 0, len(paths))
	totalLinks := 0
	for _, path := range paths {
		doc := docs[path]
		totalLinks += len(doc.Outgoing)
		nodes = append(nodes, map[string]interface{}{
			"path":     path,
			"title":    doc.Title,
			"outgoing": stringList(doc.Outgoing),
			"incoming": stringList(doc.Incoming),
		})
	}

	return makeResult(map[string]interface{}{
		"docs":       nodes,
		"totalDocs":  len(paths),
		"totalLinks": totalLinks,
	})
}

func clearDocs(this js.Value, args []js.Value) interface{} {
	contents = make(map[string]string)
	docs = nil
	return makeResult(map[string]interface{}{
		"success": true,
	})
}

// stringList widens for json marshaling so empty sets encode as [].
func stringList(s []string) []interface{} {
	out := make([]interface{}, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}

func makeError(msg string) interface{} {
	result, _ := json.Marshal(map[string]interface{}{
		"error": msg,
	})
	return string(result)
}

func makeResult(data map[string]interface{}) interface{} {
	result, _ := json.Marshal(data)
	return string(result)
}
