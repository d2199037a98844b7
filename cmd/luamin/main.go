package main

import (
	"bytes"
	"errors"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/djherbis/atime"
	humanize "github.com/dustin/go-humanize"
	"github.com/tdewolff/argp"
	min "github.com/wc3ts/luamin"
	"github.com/wc3ts/luamin/lua"
)

// Version is the current luamin version.
var Version = "built from source"

const (
	luaMimetype    = "text/x-lua"
	luaASTMimetype = "application/x-lua-ast+json"
)

// ErrEmptyResult is returned when a non-empty input minifies to nothing.
var ErrEmptyResult = errors.New("minified to an empty result")

var extMap = map[string]string{
	"lua":  luaMimetype,
	"json": luaASTMimetype,
}

var (
	hidden             bool
	list               bool
	m                  *min.M
	matches            []string
	matchesRegexp      []*regexp.Regexp
	filters            []string
	filtersRegexp      []*regexp.Regexp
	extensions         map[string]string
	recursive          bool
	quiet              bool
	verbose            int
	version            bool
	watch              bool
	bundle             bool
	preserve           []string
	preserveMode       bool
	preserveTimestamps bool
	mimetype           string
)

type Matches struct {
	matches *[]string
}

func (scanner Matches) Scan(s []string) (int, error) {
	n := 0
	for _, item := range s {
		if strings.HasPrefix(item, "-") {
			break
		}
		*scanner.matches = append(*scanner.matches, item)
		n++
	}
	return n, nil
}

func (typenamer Matches) TypeName() string {
	return "[]string"
}

// Filters collects path patterns prefixed by '+' for inclusion or '-' for exclusion.
type Filters struct {
	filters *[]string
	prefix  string
}

func (scanner Filters) Scan(s []string) (int, error) {
	n := 0
	for _, item := range s {
		if strings.HasPrefix(item, "-") {
			break
		}
		*scanner.filters = append(*scanner.filters, scanner.prefix+item)
		n++
	}
	return n, nil
}

func (typenamer Filters) TypeName() string {
	return "[]string"
}

// Loggers.
var (
	Error   *log.Logger
	Warning *log.Logger
	Info    *log.Logger
)

func main() {
	// os.Exit doesn't execute pending defer calls, this is fixed by encapsulating run()
	os.Exit(run())
}

func run() int {
	var inputs []string
	var output string
	var seed int
	var preserveFiles []string
	var jassFiles []string

	luaMinifier := lua.Minifier{}

	f := argp.New("luamin")
	f.AddRest(&inputs, "inputs", "Input files or directories, leave blank to use stdin")
	f.AddOpt(&output, "o", "output", nil, "Output file or directory, leave blank to use stdout")
	f.AddOpt(&mimetype, "", "type", nil, "Filetype (eg. lua or text/x-lua), optional when specifying inputs")
	f.AddOpt(Matches{&matches}, "", "match", nil, "Filename matching pattern, only matching filenames are processed")
	f.AddOpt(Filters{&filters, "+"}, "", "include", nil, "Path inclusion pattern, includes paths previously excluded")
	f.AddOpt(Filters{&filters, "-"}, "", "exclude", nil, "Path exclusion pattern, excludes paths from being processed")
	f.AddOpt(&extensions, "", "ext", nil, "Filename extension mapping to filetype (eg. lua or text/x-lua)")
	f.AddOpt(&recursive, "r", "recursive", false, "Recursively minify directories")
	f.AddOpt(&hidden, "a", "all", false, "Minify all files, including hidden files and files in hidden directories")
	f.AddOpt(&list, "l", "list", false, "List all accepted filetypes")
	f.AddOpt(&quiet, "q", "quiet", false, "Quiet mode to suppress all output")
	f.AddOpt(argp.Count{&verbose}, "v", "verbose", nil, "Verbose mode, set twice for more verbosity")
	f.AddOpt(&watch, "w", "watch", false, "Watch files and minify upon changes")
	f.AddOpt(&preserve, "p", "preserve", []string{"mode", "timestamps"}, "Preserve options (mode, timestamps, all)")
	f.AddOpt(&bundle, "b", "bundle", false, "Bundle files by concatenation into a single file")
	f.AddOpt(&version, "", "version", false, "Version")

	f.AddOpt(&luaMinifier.NewlineSeparator, "", "lua-newline", false, "Separate statements by newlines instead of semicolons")
	f.AddOpt(&luaMinifier.MinifyMemberNames, "", "lua-members", false, "Rename member names in a.b and a:b")
	f.AddOpt(&luaMinifier.MinifyTableKeyStrings, "", "lua-table-keys", false, "Rename keys in table constructors {key=value}")
	f.AddOpt(&luaMinifier.MinifyAssignedGlobalVars, "", "lua-assigned-globals", false, "Rename globals from their first assignment on")
	f.AddOpt(&luaMinifier.MinifyGlobalFunctions, "", "lua-global-functions", false, "Rename globals from their first function declaration on")
	f.AddOpt(&luaMinifier.MinifyAllGlobalVars, "", "lua-all-globals", false, "Rename all globals not starting with an underscore")
	f.AddOpt(&luaMinifier.RandomIdentifiers, "", "lua-random", false, "Draw new names randomly instead of sequentially")
	f.AddOpt(&seed, "", "lua-seed", 0, "Seed for random names, 0 picks a random seed")
	f.AddOpt(&luaMinifier.PreservedGlobalFunctions, "", "lua-preserve-functions", nil, "Global function names that are never renamed")
	f.AddOpt(&luaMinifier.PreservedGlobalVars, "", "lua-preserve-vars", nil, "Global variable names that are never renamed")
	f.AddOpt(&preserveFiles, "", "lua-preserve-file", nil, "YAML file with functions and variables lists of names that are never renamed")
	f.AddOpt(&jassFiles, "", "lua-jass", nil, "JASS declaration files (eg. common.j) whose natives, functions and globals are never renamed")
	f.Parse()

	if version {
		if !quiet {
			fmt.Printf("luamin %s\n", Version)
		}
		return 0
	}

	for ext, filetype := range extensions {
		if mimetype, ok := extMap[filetype]; ok {
			filetype = mimetype
		}
		extMap[ext] = filetype
	}

	if list {
		if !quiet {
			n := 0
			var keys []string
			for k := range extMap {
				keys = append(keys, k)
				if n < len(k) {
					n = len(k)
				}
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Println(k + strings.Repeat(" ", n-len(k)+2) + extMap[k])
			}
		}
		return 0
	}

	if len(inputs) == 1 && inputs[0] == "-" {
		inputs = inputs[:0] // stdin
	} else if output == "-" {
		output = "" // stdout
	}
	useStdin := len(inputs) == 0

	Error = log.New(ioutil.Discard, "", 0)
	Warning = log.New(ioutil.Discard, "", 0)
	Info = log.New(ioutil.Discard, "", 0)
	if !quiet {
		Error = log.New(os.Stderr, "ERROR: ", 0)
		if 0 < verbose {
			Warning = log.New(os.Stderr, "WARNING: ", 0)
		}
		if 1 < verbose {
			Info = log.New(os.Stderr, "INFO: ", 0)
		}
	}

	// compile matches and regexps
	var err error
	if 0 < len(matches) {
		matchesRegexp = make([]*regexp.Regexp, len(matches))
		for i, pattern := range matches {
			if matchesRegexp[i], err = compilePattern(pattern); err != nil {
				Error.Println(err)
				return 1
			}
		}
	}
	if 0 < len(filters) {
		filtersRegexp = make([]*regexp.Regexp, len(filters))
		for i, pattern := range filters {
			if filtersRegexp[i], err = compilePattern(pattern[1:]); err != nil {
				Error.Println(err)
				return 1
			}
		}
	}

	// detect mimetype, mimetype=="" means we'll infer mimetype from file extensions
	if slash := strings.Index(mimetype, "/"); slash == -1 && 0 < len(mimetype) {
		var ok bool
		if mimetype, ok = extMap[mimetype]; !ok {
			Error.Println("unknown filetype", mimetype)
			return 1
		}
	}

	if (useStdin || output == "") && watch {
		Error.Println("--watch doesn't work with stdin and stdout, specify input and output")
		return 1
	} else if useStdin && (bundle || recursive) {
		if bundle {
			Error.Println("--bundle doesn't work with stdin, specify input")
		}
		if recursive {
			Error.Println("--recursive doesn't work with stdin, specify input")
		}
		return 1
	} else if output == "" && recursive && !bundle {
		Error.Println("--recursive doesn't work with stdout, specify output or use --bundle")
		return 1
	}
	if bundle && mimetype == luaASTMimetype {
		Error.Println("--bundle doesn't work with syntax trees")
		return 1
	}
	if mimetype == "" && useStdin {
		Error.Println("must specify --type for stdin")
		return 1
	}
	if mimetype == "" {
		if !recursive {
			okAll := true
			for _, input := range inputs {
				if _, ok := extMap[extension(input)]; !ok {
					Error.Println("cannot infer mimetype from extension in", input, ", set --type explicitly")
					okAll = false
				}
			}
			if !okAll {
				return 1
			}
		}
		Info.Println("infer mimetype from file extensions")
	} else {
		Info.Println("use mimetype", mimetype)
	}
	if f.IsSet("preserve") {
		if bundle {
			Error.Println("--preserve cannot be used together with --bundle")
			return 1
		} else if useStdin || output == "" {
			Error.Println("--preserve cannot be used together with stdin or stdout")
			return 1
		}
	}
	for _, option := range preserve {
		switch option {
		case "all":
			preserveMode = true
			preserveTimestamps = true
		case "mode":
			preserveMode = true
		case "timestamps":
			preserveTimestamps = true
		default:
			Warning.Println("unknown preserve option", option)
		}
	}

	// collect names that are never renamed
	for _, filename := range preserveFiles {
		names, err := loadPreserveFile(filename)
		if err != nil {
			Error.Println(err)
			return 1
		}
		luaMinifier.PreservedGlobalFunctions = append(luaMinifier.PreservedGlobalFunctions, names.Functions...)
		luaMinifier.PreservedGlobalVars = append(luaMinifier.PreservedGlobalVars, names.Variables...)
	}
	for _, filename := range jassFiles {
		names, err := loadJASSFile(filename)
		if err != nil {
			Error.Println(err)
			return 1
		}
		Info.Printf("preserve %d functions and %d variables declared in %s\n", len(names.Functions), len(names.Variables), filename)
		luaMinifier.PreservedGlobalFunctions = append(luaMinifier.PreservedGlobalFunctions, names.Functions...)
		luaMinifier.PreservedGlobalVars = append(luaMinifier.PreservedGlobalVars, names.Variables...)
	}
	luaMinifier.Seed = int64(seed)

	////////////////

	for i, input := range inputs {
		if input == "-" {
			Error.Println("cannot mix files and stdin as input")
			return 1
		}
		inputs[i] = filepath.Clean(input)
		if input[len(input)-1] == os.PathSeparator {
			inputs[i] += string(os.PathSeparator)
		}
	}

	// set output file or directory, empty means stdout
	dirDst := false
	if output != "" {
		dirDst = IsDir(output)
		if !dirDst {
			if 1 < len(inputs) && !bundle {
				Error.Printf("stat %v: no such file or directory\n", output)
				return 1
			} else if len(inputs) == 1 {
				if info, err := os.Lstat(inputs[0]); err == nil && !bundle && info.Mode().IsDir() && info.Mode()&os.ModeSymlink == 0 {
					dirDst = true
				}
			}
		}
		if dirDst && bundle {
			Error.Println("--bundle requires destination to be stdout or a file")
			return 1
		}

		output = filepath.Clean(output)
		if dirDst {
			output += string(os.PathSeparator)
		}
	} else if 1 < len(inputs) {
		Error.Println("must specify --bundle for multiple input files with stdout destination")
		return 1
	}
	if output == "" {
		Info.Println("minify to stdout")
	} else if !dirDst {
		Info.Println("minify to output file", output)
	} else if output == "."+string(os.PathSeparator) {
		Info.Println("minify to current working directory")
	} else {
		Info.Println("minify to output directory", output)
	}
	if useStdin {
		Info.Println("minify from stdin")
	}

	var tasks []Task
	var roots []string
	if useStdin {
		task, err := NewTask("", "", output)
		if err != nil {
			Error.Println(err)
			return 1
		}
		tasks = append(tasks, task)
		roots = append(roots, "")
	} else {
		tasks, roots, err = createTasks(NewFS(), inputs, output)
		if err != nil {
			Error.Println(err)
			return 1
		}
	}

	// concatenate
	if 1 < len(tasks) && bundle {
		for _, task := range tasks[1:] {
			tasks[0].srcs = append(tasks[0].srcs, task.srcs[0])
		}
		tasks = tasks[:1]
	}

	// make output directory
	if dirDst {
		if err := os.MkdirAll(output, 0777); err != nil {
			Error.Println(err)
			return 1
		}
	}

	////////////////

	m = newMinifier(luaMinifier)

	fails := 0
	start := time.Now()
	if !watch && (len(tasks) == 1 || 0 < verbose) {
		for _, task := range tasks {
			if ok := minify(task); !ok {
				fails++
			}
		}
	} else {
		numWorkers := runtime.NumCPU()
		if 0 < verbose {
			numWorkers = 1
		} else if numWorkers < 4 {
			numWorkers = 4
		}

		chanTasks := make(chan Task, 20)
		chanFails := make(chan int, numWorkers)
		for n := 0; n < numWorkers; n++ {
			go minifyWorker(chanTasks, chanFails)
		}

		if !watch {
			for _, task := range tasks {
				chanTasks <- task
			}
		} else {
			watcher, err := NewWatcher(recursive)
			if err != nil {
				Error.Println(err)
				return 1
			}
			defer watcher.Close()
			changes := watcher.Run()

			for _, filename := range inputs {
				if err := watcher.AddPath(filename); err != nil {
					Error.Println(err)
					return 1
				}
			}

			for _, task := range tasks {
				watcher.IgnoreNext(task.dst)
				chanTasks <- task
			}

			c := make(chan os.Signal, 1)
			signal.Notify(c, os.Interrupt)
			for changes != nil {
				select {
				case <-c:
					watcher.Close()
				case file, ok := <-changes:
					if !ok {
						changes = nil
						break
					} else if !fileMatches(file) {
						break
					}
					file = filepath.Clean(file)

					// find longest common path among roots
					root := ""
					for _, path := range roots {
						pathRel, err1 := filepath.Rel(path, file)
						rootRel, err2 := filepath.Rel(root, file)
						if err2 != nil || err1 == nil && len(pathRel) < len(rootRel) {
							root = path
						}
					}

					task, err := NewTask(root, file, output)
					if err != nil {
						Error.Println(err)
						return 1
					}
					watcher.IgnoreNext(task.dst) // skip change on output
					chanTasks <- task
				}
			}
		}

		close(chanTasks)
		for n := 0; n < numWorkers; n++ {
			fails += <-chanFails
		}
	}

	if !watch {
		Info.Println("finished in", time.Since(start))
	}
	if 0 < fails {
		return 1
	}
	return 0
}

// newMinifier registers the Lua minifier for Lua source and for syntax trees.
func newMinifier(luaMinifier lua.Minifier) *min.M {
	astMinifier := luaMinifier
	astMinifier.ASTInput = true

	m := min.New()
	m.AddRegexp(regexp.MustCompile("^(application|text)/(x-)?lua$"), &luaMinifier)
	m.Add(luaASTMimetype, &astMinifier)
	return m
}

func minifyWorker(chanTasks <-chan Task, chanFails chan<- int) {
	fails := 0
	for task := range chanTasks {
		if ok := minify(task); !ok {
			fails++
		}
	}
	chanFails <- fails
}

// taskMimetype returns the mimetype of the task's inputs, which must agree for a bundle.
func taskMimetype(t Task) (string, error) {
	if mimetype != "" {
		return mimetype, nil
	}
	taskMimetype := ""
	for _, src := range t.srcs {
		srcMimetype, ok := extMap[extension(src)]
		if !ok {
			return "", fmt.Errorf("cannot infer mimetype from extension in %s, set --type explicitly", src)
		} else if taskMimetype != "" && srcMimetype != taskMimetype {
			return "", fmt.Errorf("inferred mimetype %s of %s for concatenation unequal to previous mimetypes, set --type explicitly", srcMimetype, src)
		}
		taskMimetype = srcMimetype
	}
	if 1 < len(t.srcs) && taskMimetype == luaASTMimetype {
		return "", fmt.Errorf("cannot bundle syntax trees")
	}
	return taskMimetype, nil
}

func minify(t Task) bool {
	fileMimetype, err := taskMimetype(t)
	if err != nil {
		Warning.Println(err)
		return false
	}

	srcName := strings.Join(t.srcs, " + ")
	if len(t.srcs) > 1 {
		srcName = "(" + srcName + ")"
	}
	if srcName == "" {
		srcName = "stdin"
	}
	dstName := t.dst
	if dstName == "" {
		dstName = "stdout"
	}

	// inputs are read completely before the output is opened, overwriting an input is safe
	b, err := readInputFiles(t.srcs, []byte("\n"))
	if err != nil {
		Error.Println("cannot minify "+srcName+":", err)
		return false
	}
	w := bytes.NewBuffer(make([]byte, 0, len(b)))

	startTime := time.Now()
	if err = m.Minify(fileMimetype, w, bytes.NewReader(b)); err == nil && 0 < len(bytes.TrimSpace(b)) && w.Len() == 0 {
		err = ErrEmptyResult
	}
	if err != nil {
		Error.Println("cannot minify "+srcName+":", err)
		return false
	}
	dur := time.Since(startTime)

	fw, err := openOutputFile(t.dst)
	if err != nil {
		Error.Println(err)
		return false
	}
	rLen, wLen := len(b), w.Len()
	_, err = w.WriteTo(fw)
	if t.dst != "" {
		if cerr := fw.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		Error.Println("cannot write "+dstName+":", err)
		return false
	}

	if !quiet {
		speed := "Inf MB"
		if 0 < dur {
			speed = humanize.Bytes(uint64(float64(rLen) / dur.Seconds()))
		}
		ratio := 1.0
		if 0 < rLen {
			ratio = float64(wLen) / float64(rLen)
		}

		stats := fmt.Sprintf("(%9v, %6v, %6v, %5.1f%%, %6v/s)", dur, humanize.Bytes(uint64(rLen)), humanize.Bytes(uint64(wLen)), ratio*100, speed)
		if srcName != dstName {
			fmt.Fprintln(os.Stderr, stats, "-", srcName, "to", dstName)
		} else {
			fmt.Fprintln(os.Stderr, stats, "-", srcName)
		}
	}

	if len(t.srcs) == 1 {
		preserveAttributes(t.srcs[0], t.root, t.dst)
	}
	return true
}

// preserveAttributes copies the mode and timestamps of src to dst, and of the directories between them up to the root.
func preserveAttributes(src, root, dst string) {
	if src == "" || dst == "" || !preserveMode && !preserveTimestamps {
		return
	}

	var err error
	src, err = filepath.Rel(root, src)
	if err != nil {
		Error.Printf("src is not part of root path: src=%s root=%s", src, root)
		return
	}

	for src != "." && src != string(os.PathSeparator) {
		srcInfo, err := os.Stat(filepath.Join(root, src))
		if err != nil {
			Warning.Println(err)
			return
		}

		if preserveMode {
			if err := os.Chmod(dst, srcInfo.Mode().Perm()); err != nil {
				Warning.Println(err)
			}
		}
		if preserveTimestamps {
			if err := os.Chtimes(dst, atime.Get(srcInfo), srcInfo.ModTime()); err != nil {
				Warning.Println(err)
			}
		}

		src = filepath.Dir(src)
		dst = filepath.Dir(dst)
	}
}
