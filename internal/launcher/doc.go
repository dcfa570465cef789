// Package launcher assembles the arguments of an external job and runs it.
//
// Overview
// A Launcher binds the external build tool (model.Tool) and one configured
// job class (model.Job). Launch takes a model.LaunchRequest, lists the input
// directory, resolves the tool, prepares a child-local environment and spawns
// the tool once, waiting for it to finish.
//
//	Launch(req)
//	  |- validate output path          -> ErrInvalidArgument
//	  |- BuildArguments(output, dir)   -> ErrDirectoryNotFound / ErrDirectoryNotReadable
//	  |- exec.LookPath(tool)           -> ErrToolNotFound
//	  |- ChildEnv(os.Environ, env)
//	  |- Runner.Run(Command)           spawn + wait, capture stdout/stderr
//	  '- strict && exit != 0           -> ErrToolExecution
//
// The command line is an explicit argument vector passed to os/exec, no shell
// is involved:
//
//	<tool> <tool args...> <class prefix><class> <output> <inputs...>         (vector)
//	<tool> <tool args...> <class prefix><class> "<args prefix><output> <inputs...>"  (joined)
//
// In the joined style the arguments form a single argv element, elements with
// whitespace or quotes are quoted as a whole, see model.ArgumentList.Joined.
//
// Invariants:
//   - The environment of the calling process is never modified.
//   - Nothing is spawned unless arguments and the tool were resolved.
//   - Launch is synchronous; one call spawns at most one process.
//   - A timed out child gets SIGTERM to its process group, then SIGKILL
//     after the grace period.
//
// ProcessRunner is the os/exec implementation of Runner, tests inject a fake
// Runner to observe the Command without spawning anything.
package launcher
