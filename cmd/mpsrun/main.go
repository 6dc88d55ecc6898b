// mpsrun is the command-line entry point that drives a run directory
// through the full pipeline: decode a runconfig.Config, compile its
// channels through the FSM into an MPO, search for the ground state with
// two-site DMRG, optionally step it forward in time with TDVP, and record
// the outcome. Generalized from cmd/run/main.go and mps/cmd/run/main.go's
// flag-based run directory (a "-d" flag, a JSON statistics file, and a
// "done" marker so a re-invocation on a finished run is a no-op) from a
// fixed transverse-field Ising sweep to an arbitrary channel.List.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/fumin/mpscore/fsm"
	"github.com/fumin/mpscore/mpo"
	"github.com/fumin/mpscore/mps"
	"github.com/fumin/mpscore/observable"
	"github.com/fumin/mpscore/rundb"
	"github.com/fumin/mpscore/runconfig"
	"github.com/fumin/mpscore/site"
	"github.com/fumin/mpscore/solver"
	"github.com/fumin/mpscore/sweep"
)

const (
	fnameDone       = "done.txt"
	fnameStatistics = "statistics.json"
	fnameDB         = "runs.db"
)

var runDir = flag.String("d", filepath.Join("runs", "mpsrun"), "run directory")

// Statistics is what a run leaves behind for later inspection.
type Statistics struct {
	Energy       float64   `json:"energy"`
	Sweeps       int       `json:"sweeps"`
	Converged    bool      `json:"converged"`
	MaxDiscarded float64   `json:"max_discarded"`
	SiteZ        []float64 `json:"site_z,omitempty"`
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds | log.Llongfile | log.LstdFlags)

	if err := mainWithErr(); err != nil {
		log.Fatalf("%+v", err)
	}
}

func mainWithErr() error {
	donePath := filepath.Join(*runDir, fnameDone)
	if _, err := os.Stat(donePath); err == nil {
		log.Printf("run already done: %s", *runDir)
		return nil
	}
	if err := os.MkdirAll(*runDir, os.ModePerm); err != nil {
		return errors.Wrap(err, "")
	}

	cfgPath := filepath.Join(*runDir, runconfig.FnameConfig)
	cfgJSON, err := os.ReadFile(cfgPath)
	if err != nil {
		return errors.Wrap(err, "")
	}
	cfg, err := runconfig.Load(cfgPath)
	if err != nil {
		return errors.Wrap(err, "")
	}

	db, err := rundb.Open(filepath.Join(*runDir, fnameDB))
	if err != nil {
		return errors.Wrap(err, "")
	}
	defer db.Close()

	hash := rundb.Hash(cfgJSON)
	if cached, ok, err := db.Lookup(hash); err != nil {
		return errors.Wrap(err, "")
	} else if ok {
		log.Printf("reusing cached result for %s: %+v", hash, cached)
		return finish(*runDir, donePath, Statistics{Energy: cached.Energy, Sweeps: cached.Sweeps, Converged: cached.Converged, MaxDiscarded: cached.MaxDiscarded})
	}

	stats, err := solve(cfg, hash, cfgJSON, db)
	if err != nil {
		return errors.Wrap(err, "")
	}
	return finish(*runDir, donePath, stats)
}

func solve(cfg *runconfig.Config, hash string, cfgJSON []byte, db *rundb.DB) (Statistics, error) {
	cat := site.NewCatalog()
	chain, err := cfg.BuildChain(cat)
	if err != nil {
		return Statistics{}, errors.Wrap(err, "")
	}
	chans, err := cfg.BuildChannels()
	if err != nil {
		return Statistics{}, errors.Wrap(err, "")
	}

	g, err := fsm.Build(chans)
	if err != nil {
		return Statistics{}, errors.Wrap(err, "")
	}
	w, err := mpo.Build(g, chain)
	if err != nil {
		return Statistics{}, errors.Wrap(err, "")
	}

	state := mps.RandomMPS(chain, cfg.Algorithm.BondDim)
	opts := sweep.DMRGOptions{
		Options: sweep.Options{
			Truncate: mps.TruncateOptions{Cutoff: cfg.Algorithm.Cutoff, MaxRank: cfg.Algorithm.MaxRank},
			Lanczos:  solver.Options{MaxIter: cfg.Algorithm.KrylovDim},
		},
		MaxSweeps: cfg.Algorithm.MaxSweeps,
		Tol:       cfg.Algorithm.Tol,
	}
	res, err := sweep.GroundState(w, state, opts, nil)
	if err != nil {
		return Statistics{}, errors.Wrap(err, "")
	}
	if err := db.RecordSweep(hash, rundb.SweepRecord{Sweep: res.Sweeps, Energy: res.Energy, MaxDiscarded: res.MaxDiscarded}); err != nil {
		return Statistics{}, errors.Wrap(err, "")
	}

	if cfg.Algorithm.Steps > 0 {
		tdvpOpts := sweep.TDVPOptions{Options: opts.Options, Dt: cfg.Algorithm.Dt.Value()}
		for step := 0; step < cfg.Algorithm.Steps; step++ {
			if err := sweep.Step(w, state, tdvpOpts, nil); err != nil {
				return Statistics{}, errors.Wrapf(err, "step %d", step)
			}
		}
	}

	siteZ, err := magnetizationProfile(chain, state)
	if err != nil {
		return Statistics{}, errors.Wrap(err, "")
	}

	stats := Statistics{Energy: res.Energy, Sweeps: res.Sweeps, Converged: res.Converged, MaxDiscarded: res.MaxDiscarded, SiteZ: siteZ}
	dbRes := rundb.Result{Energy: res.Energy, Sweeps: res.Sweeps, Converged: res.Converged, MaxDiscarded: res.MaxDiscarded}
	if err := db.SaveResult(hash, cfgJSON, dbRes); err != nil {
		return Statistics{}, errors.Wrap(err, "")
	}
	return stats, nil
}

// magnetizationProfile reads <Z_i> at every spin site, skipping species
// that have no "Z" operator (bosons).
func magnetizationProfile(chain *site.Chain, s *mps.State) ([]float64, error) {
	profile := make([]float64, chain.Len())
	for i := 0; i < chain.Len(); i++ {
		if chain.At(i).Species != site.SpeciesSpin {
			continue
		}
		v, err := observable.SiteExpectation(chain, s, i, "Z")
		if err != nil {
			return nil, errors.Wrapf(err, "site %d", i)
		}
		profile[i] = real(v)
	}
	return profile, nil
}

func finish(dir, donePath string, stats Statistics) error {
	b, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return errors.Wrap(err, "")
	}
	if err := os.WriteFile(filepath.Join(dir, fnameStatistics), b, 0644); err != nil {
		return errors.Wrap(err, "")
	}
	if err := os.WriteFile(donePath, nil, 0644); err != nil {
		return errors.Wrap(err, "")
	}
	log.Printf("%+v", stats)
	return nil
}
