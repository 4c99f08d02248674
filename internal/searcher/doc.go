// Package searcher implements the search operations used before new code is
// written: raw code search, duplicate detection, symbol existence, similar
// implementations, pattern and import search, repository structure and file
// content.
//
// Every operation follows the same flow:
//
//	key := cache.Key(operation, params)
//	if cached, ok := cache.Lookup[T](c, key); ok {
//	    return cached
//	}
//	result := shape(transport.Stream(query.Build(params)))
//	c.Set(key, result)
//
// Operations built on top of SearchCode share its cache entries, so a
// repeated symbol check is served without any outbound request.
//
// # Basic Usage
//
//	s := searcher.New(client, cache, searcher.Options{Logger: logger})
//
//	found, err := s.CheckSymbolExists(ctx, "createLogger", "function")
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("%s exists in %d places\n", found.SymbolName, found.LocationCount)
//
// # Errors
//
// Failures are logged, captured on the configured incident.Reporter with the
// operation name and parameters, and returned wrapped with the operation name.
// Transport errors keep their type, so transport.Hint still applies.
package searcher
