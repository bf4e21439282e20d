// Package internal contains the implementation packages of the arbor static
// site builder.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - project: source tree model, descriptor, locales and indexed resource files
//   - variables: per-directory XML value stores with locale variants
//   - reference: parsing of @type/name mentions inside text and attributes
//   - resolver: locale and hierarchy aware lookup of values and media
//   - compose: template, editable, component and parameter operators
//   - script: class declaration and use analysis for script ordering
//   - build: page by locale build loop, document rendering and output naming
//   - config, validation: Viper settings and their checks
//   - watcher: debounced file system monitoring for rebuilds
//   - errors, logging, version: shared ambient support
//
// # Data Flow
//
// A build runs one way through the packages:
//
//   - cmd loads the configuration and the project
//   - build iterates locales and pages, asking compose for each page tree
//   - compose resolves references through resolver, which reads variables
//   - script orders the collected scripts before the document is written
//   - watcher reruns the whole pipeline on a fresh project after changes
//
// Builds are single threaded. A build engine instance is used once.
package internal
