package dag

// Builder helpers for the canonical node shapes. They pre-populate inputs,
// outputs and command argv; the engine owns argv synthesis.

// AddCompile creates a Compile node for one translation unit.
func (g *Graph) AddCompile(source, object string, argv []string) int64 {
	id := g.AddNode("compile "+source, Compile)
	n := g.nodes[id]
	n.Inputs = []string{source}
	n.Outputs = []string{object}
	n.Argv = argv
	return id
}

// AddModule creates a CompileModule node for a module interface unit and
// registers it as the provider of the named module. The BMI is the first
// output so consumers can locate it.
func (g *Graph) AddModule(module, source, bmi, object string, argv []string) int64 {
	id := g.AddNode("module "+module, CompileModule)
	n := g.nodes[id]
	n.Inputs = []string{source}
	n.Outputs = []string{bmi, object}
	n.Argv = argv
	g.RegisterModuleProvider(module, id)
	return id
}

// AddLink creates a Link node producing output from the given objects. The
// caller wires the edges to the object nodes.
func (g *Graph) AddLink(name string, objects []string, output string, argv []string) int64 {
	id := g.AddNode("link "+name, Link)
	n := g.nodes[id]
	n.Inputs = append([]string(nil), objects...)
	n.Outputs = []string{output}
	n.Argv = argv
	return id
}

// AddArchive creates an Archive node producing a static library.
func (g *Graph) AddArchive(name string, objects []string, output string, argv []string) int64 {
	id := g.AddNode("archive "+name, Archive)
	n := g.nodes[id]
	n.Inputs = append([]string(nil), objects...)
	n.Outputs = []string{output}
	n.Argv = argv
	return id
}

// AddInstall creates an Install node copying an artifact to its destination.
func (g *Graph) AddInstall(name, source, dest string, argv []string) int64 {
	id := g.AddNode("install "+name, Install)
	n := g.nodes[id]
	n.Inputs = []string{source}
	n.Outputs = []string{dest}
	n.Argv = argv
	return id
}
