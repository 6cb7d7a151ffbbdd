package storagetest

import (
	"context"
	"errors"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/papercomputeco/cortex/pkg/geometry"
	"github.com/papercomputeco/cortex/pkg/storage"
)

// DescribeDriver registers the shared repository specs. newDriver must return
// a driver over an empty store and is called once per test.
func DescribeDriver(newDriver func() storage.Driver) {
	var (
		driver storage.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = newDriver()
	})

	AfterEach(func() {
		if driver != nil {
			Expect(driver.Close()).To(Succeed())
		}
	})

	Describe("GetOrCreateScan", func() {
		It("creates a scan", func() {
			scan, err := driver.GetOrCreateScan(ctx, ScanInput("sub-01.nii.gz"))
			Expect(err).NotTo(HaveOccurred())
			Expect(scan.ID).NotTo(BeZero())
			Expect(scan.FileName).To(Equal("sub-01.nii.gz"))
			Expect(scan.Dimensions).To(Equal("(182, 218, 182)"))
		})

		It("returns the stored scan without updating it", func() {
			first, err := driver.GetOrCreateScan(ctx, ScanInput("sub-01.nii.gz"))
			Expect(err).NotTo(HaveOccurred())

			in := ScanInput("sub-01.nii.gz")
			in.FileSize = 99
			second, err := driver.GetOrCreateScan(ctx, in)
			Expect(err).NotTo(HaveOccurred())
			Expect(second).To(Equal(first))

			scans, err := driver.ListScans(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(scans).To(HaveLen(1))
		})

		It("returns NotFoundError for an unknown scan", func() {
			_, err := driver.GetScan(ctx, "missing.nii.gz")
			var nf storage.NotFoundError
			Expect(errors.As(err, &nf)).To(BeTrue())
			Expect(nf.Entity).To(Equal(storage.EntityScan))
			Expect(nf.Key).To(Equal("missing.nii.gz"))
		})
	})

	Describe("GetOrCreateRegion", func() {
		It("deduplicates regions by name", func() {
			left := "left"
			first, err := driver.GetOrCreateRegion(ctx, storage.RegionInput{Name: "Left-Hippocampus", Laterality: &left, AtlasValue: 17})
			Expect(err).NotTo(HaveOccurred())
			Expect(*first.Laterality).To(Equal("left"))

			second, err := driver.GetOrCreateRegion(ctx, storage.RegionInput{Name: "Left-Hippocampus", AtlasValue: 99})
			Expect(err).NotTo(HaveOccurred())
			Expect(second.ID).To(Equal(first.ID))
			Expect(second.AtlasValue).To(Equal(17))
		})

		It("stores regions without laterality", func() {
			region, err := driver.GetOrCreateRegion(ctx, storage.RegionInput{Name: "Brain-Stem", AtlasValue: 16})
			Expect(err).NotTo(HaveOccurred())
			Expect(region.Laterality).To(BeNil())

			fetched, err := driver.GetRegion(ctx, "Brain-Stem")
			Expect(err).NotTo(HaveOccurred())
			Expect(fetched).To(Equal(region))
		})

		It("resolves concurrent creation of the same region to one row", func() {
			const workers = 8
			ids := make([]int64, workers)
			errs := make([]error, workers)

			var wg sync.WaitGroup
			for i := range workers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					defer GinkgoRecover()
					region, err := driver.GetOrCreateRegion(ctx, storage.RegionInput{Name: "Thalamus", AtlasValue: 10})
					errs[i] = err
					if err == nil {
						ids[i] = region.ID
					}
				}()
			}
			wg.Wait()

			for i := range workers {
				Expect(errs[i]).NotTo(HaveOccurred())
				Expect(ids[i]).To(Equal(ids[0]))
			}
		})
	})

	Describe("GetOrCreateScanRegion", func() {
		var (
			scan   *storage.Scan
			region *storage.Region
		)

		BeforeEach(func() {
			var err error
			scan, err = driver.GetOrCreateScan(ctx, ScanInput("sub-01.nii.gz"))
			Expect(err).NotTo(HaveOccurred())
			region, err = driver.GetOrCreateRegion(ctx, storage.RegionInput{Name: "Putamen", AtlasValue: 12})
			Expect(err).NotTo(HaveOccurred())
		})

		It("stores statistics, centroid and bounding box", func() {
			box := r3.NewBox(1, 2, 3, 4, 5, 6)
			sr, err := driver.GetOrCreateScanRegion(ctx, scan, region, storage.ScanRegionInput{
				Stats:       RegionStats(420),
				Centroid:    r3.Vec{X: 2.5, Y: 3.5, Z: 4.5},
				BoundingBox: &box,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(sr.ScanID).To(Equal(scan.ID))
			Expect(sr.RegionID).To(Equal(region.ID))

			fetched, err := driver.GetScanRegion(ctx, scan.ID, region.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(fetched.Stats).To(Equal(RegionStats(420)))
			Expect(fetched.Centroid).To(Equal(r3.Vec{X: 2.5, Y: 3.5, Z: 4.5}))
			Expect(fetched.BoundingBox).NotTo(BeNil())
			Expect(*fetched.BoundingBox).To(Equal(box))
		})

		It("does not overwrite an existing association", func() {
			first, err := driver.GetOrCreateScanRegion(ctx, scan, region, storage.ScanRegionInput{Stats: RegionStats(1)})
			Expect(err).NotTo(HaveOccurred())

			second, err := driver.GetOrCreateScanRegion(ctx, scan, region, storage.ScanRegionInput{Stats: RegionStats(2)})
			Expect(err).NotTo(HaveOccurred())
			Expect(second.ID).To(Equal(first.ID))
			Expect(second.Stats.VoxelCount).To(Equal(int64(1)))

			regions, err := driver.ListScanRegions(ctx, scan.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(regions).To(HaveLen(1))
			Expect(regions[0].Region.Name).To(Equal("Putamen"))
		})
	})

	Describe("GetOrCreateScanRegionLOD", func() {
		It("stores a decodable surface", func() {
			cube := Cube(0, 0, 0, 1)
			scan, regions := Seed(ctx, driver, "sub-01.nii.gz", storage.Native(), NamedMesh{"Caudate", cube})

			lod, err := driver.GetScanRegionLOD(ctx, scan.ID, regions[0].ID, storage.Native())
			Expect(err).NotTo(HaveOccurred())
			Expect(lod.Level.IsNative()).To(BeTrue())

			mesh, err := lod.Mesh()
			Expect(err).NotTo(HaveOccurred())
			Expect(mesh.Faces).To(HaveLen(len(cube.Faces)))
			Expect(mesh.Vertices).To(HaveLen(8))
			Expect(mesh.Bounds()).To(Equal(cube.Bounds()))
		})

		It("is idempotent per level and keeps levels apart", func() {
			scan, regions := Seed(ctx, driver, "sub-01.nii.gz", storage.Native(), NamedMesh{"Caudate", Cube(0, 0, 0, 1)})

			native, err := driver.GetOrCreateScanRegionLOD(ctx, scan, regions[0], storage.Native(), Cube(5, 5, 5, 1))
			Expect(err).NotTo(HaveOccurred())
			again, err := driver.GetOrCreateScanRegionLOD(ctx, scan, regions[0], storage.Native(), Cube(5, 5, 5, 1))
			Expect(err).NotTo(HaveOccurred())
			Expect(again.ID).To(Equal(native.ID))

			level1, err := driver.GetOrCreateScanRegionLOD(ctx, scan, regions[0], storage.LevelOf(1), Cube(0, 0, 0, 1))
			Expect(err).NotTo(HaveOccurred())
			Expect(level1.ID).NotTo(Equal(native.ID))

			mesh, err := native.Mesh()
			Expect(err).NotTo(HaveOccurred())
			Expect(mesh.Bounds().Min).To(Equal(r3.Vec{}))
		})

		It("fails with IntegrityError when the scan region does not exist", func() {
			scan, err := driver.GetOrCreateScan(ctx, ScanInput("sub-01.nii.gz"))
			Expect(err).NotTo(HaveOccurred())
			region, err := driver.GetOrCreateRegion(ctx, storage.RegionInput{Name: "Amygdala", AtlasValue: 18})
			Expect(err).NotTo(HaveOccurred())

			_, err = driver.GetOrCreateScanRegionLOD(ctx, scan, region, storage.Native(), Cube(0, 0, 0, 1))
			var integrity storage.IntegrityError
			Expect(errors.As(err, &integrity)).To(BeTrue())
			Expect(integrity.Entity).To(Equal(storage.EntityScanRegionLOD))
			Expect(integrity.Error()).NotTo(ContainSubstring("constraint"))
		})

		It("fails with EncodingError for an empty mesh", func() {
			scan, regions := Seed(ctx, driver, "sub-01.nii.gz", storage.Native(), NamedMesh{"Caudate", Cube(0, 0, 0, 1)})

			_, err := driver.GetOrCreateScanRegionLOD(ctx, scan, regions[0], storage.LevelOf(3), geometry.Mesh{})
			var encErr *geometry.EncodingError
			Expect(errors.As(err, &encErr)).To(BeTrue())
		})

		It("fails with EncodingError for a face with coincident vertices", func() {
			scan, regions := Seed(ctx, driver, "sub-01.nii.gz", storage.Native(), NamedMesh{"Caudate", Cube(0, 0, 0, 1)})
			degenerate := geometry.Mesh{
				Vertices: []r3.Vec{{}, {X: 1}, {Y: 1}, {X: 1}},
				Faces:    [][3]int{{0, 1, 2}, {0, 1, 3}},
			}

			_, err := driver.GetOrCreateScanRegionLOD(ctx, scan, regions[0], storage.LevelOf(1), degenerate)
			var encErr *geometry.EncodingError
			Expect(errors.As(err, &encErr)).To(BeTrue())
			Expect(encErr.Reason).To(ContainSubstring("face 1"))

			_, err = driver.GetScanRegionLOD(ctx, scan.ID, regions[0].ID, storage.LevelOf(1))
			var notFound storage.NotFoundError
			Expect(errors.As(err, &notFound)).To(BeTrue())

			pairs, err := driver.RegionPairs(ctx, storage.PairQuery{ScanID: scan.ID, Level: storage.Native(), Predicate: storage.Intersects})
			Expect(err).NotTo(HaveOccurred())
			Expect(pairs).To(BeEmpty())
		})
	})

	Describe("levels", func() {
		It("reports no max level when only native surfaces exist", func() {
			scan, _ := Seed(ctx, driver, "sub-01.nii.gz", storage.Native(), NamedMesh{"Caudate", Cube(0, 0, 0, 1)})

			_, ok, err := driver.MaxLODLevel(ctx, scan.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
		})

		It("returns the highest integer level and lists every level", func() {
			meshes := []NamedMesh{{"Caudate", Cube(0, 0, 0, 1)}, {"Putamen", Cube(3, 0, 0, 1)}}
			scan, regions := Seed(ctx, driver, "sub-01.nii.gz", storage.Native(), meshes...)
			AddLevel(ctx, driver, scan, storage.LevelOf(0), regions, meshes...)
			AddLevel(ctx, driver, scan, storage.LevelOf(2), regions, meshes[:1]...)

			top, ok, err := driver.MaxLODLevel(ctx, scan.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(top).To(Equal(2))

			levels, err := driver.ListLODLevels(ctx, scan.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(levels).To(Equal([]storage.Level{storage.Native(), storage.LevelOf(0), storage.LevelOf(2)}))

			lods, err := driver.ListRegionLODs(ctx, scan.ID, storage.LevelOf(0))
			Expect(err).NotTo(HaveOccurred())
			Expect(lods).To(HaveLen(2))
			Expect(lods[0].Region.Name).To(Equal("Caudate"))
			Expect(lods[1].Region.Name).To(Equal("Putamen"))

			lods, err = driver.ListRegionLODs(ctx, scan.ID, storage.LevelOf(2))
			Expect(err).NotTo(HaveOccurred())
			Expect(lods).To(HaveLen(1))
		})
	})

	Describe("RegionPairs", func() {
		It("finds one pair for two touching regions", func() {
			scan, regions := Seed(ctx, driver, "sub-01.nii.gz", storage.Native(),
				NamedMesh{"Caudate", Cube(0, 0, 0, 1)},
				NamedMesh{"Putamen", Cube(1, 0, 0, 1)},
			)

			pairs, err := driver.RegionPairs(ctx, storage.PairQuery{ScanID: scan.ID, Level: storage.Native(), Predicate: storage.Intersects})
			Expect(err).NotTo(HaveOccurred())
			Expect(pairs).To(HaveLen(1))
			Expect(pairs[0].A.ID).To(Equal(regions[0].ID))
			Expect(pairs[0].B.ID).To(Equal(regions[1].ID))
			Expect(pairs[0].Intersects).To(BeTrue())
		})

		It("finds no pairs for disjoint regions", func() {
			scan, _ := Seed(ctx, driver, "sub-01.nii.gz", storage.Native(),
				NamedMesh{"Caudate", Cube(0, 0, 0, 1)},
				NamedMesh{"Putamen", Cube(3, 0, 0, 1)},
				NamedMesh{"Pallidum", Cube(6, 0, 0, 1)},
			)

			pairs, err := driver.RegionPairs(ctx, storage.PairQuery{ScanID: scan.ID, Level: storage.Native(), Predicate: storage.Intersects})
			Expect(err).NotTo(HaveOccurred())
			Expect(pairs).To(BeEmpty())
		})

		It("only compares surfaces at the requested level", func() {
			scan, regions := Seed(ctx, driver, "sub-01.nii.gz", storage.Native(),
				NamedMesh{"Caudate", Cube(0, 0, 0, 1)},
				NamedMesh{"Putamen", Cube(3, 0, 0, 1)},
			)
			AddLevel(ctx, driver, scan, storage.LevelOf(1), regions,
				NamedMesh{"Caudate", Cube(0, 0, 0, 2)},
				NamedMesh{"Putamen", Cube(2, 0, 0, 2)},
			)

			native, err := driver.RegionPairs(ctx, storage.PairQuery{ScanID: scan.ID, Level: storage.Native(), Predicate: storage.Intersects})
			Expect(err).NotTo(HaveOccurred())
			Expect(native).To(BeEmpty())

			level1, err := driver.RegionPairs(ctx, storage.PairQuery{ScanID: scan.ID, Level: storage.LevelOf(1), Predicate: storage.Intersects})
			Expect(err).NotTo(HaveOccurred())
			Expect(level1).To(HaveLen(1))
		})

		Context("within a distance", func() {
			var scan *storage.Scan

			BeforeEach(func() {
				scan, _ = Seed(ctx, driver, "sub-01.nii.gz", storage.Native(),
					NamedMesh{"Caudate", Cube(0, 0, 0, 1)},
					NamedMesh{"Putamen", Cube(2, 0, 0, 1)},
					NamedMesh{"Pallidum", Cube(0, 1.5, 0, 1)},
				)
			})

			within := func(eps float64) []storage.RegionPair {
				pairs, err := driver.RegionPairs(ctx, storage.PairQuery{
					ScanID: scan.ID, Level: storage.Native(), Predicate: storage.Within, Epsilon: eps,
				})
				Expect(err).NotTo(HaveOccurred())
				return pairs
			}

			It("includes pairs closer than epsilon ordered by distance", func() {
				pairs := within(1.1)
				Expect(pairs).To(HaveLen(2))
				Expect(pairs[0].A.Name).To(Equal("Caudate"))
				Expect(pairs[0].B.Name).To(Equal("Pallidum"))
				Expect(*pairs[0].Distance).To(BeNumerically("~", 0.5, 1e-9))
				Expect(pairs[0].Intersects).To(BeFalse())
				Expect(pairs[1].B.Name).To(Equal("Putamen"))
				Expect(*pairs[1].Distance).To(BeNumerically("~", 1, 1e-9))
			})

			It("excludes pairs farther than epsilon", func() {
				pairs := within(0.4)
				Expect(pairs).To(BeEmpty())
			})

			It("finds nothing at epsilon zero for separated regions", func() {
				Expect(within(0)).To(BeEmpty())
			})
		})

		It("compares a nested region with the enclosing surface", func() {
			scan, _ := Seed(ctx, driver, "sub-01.nii.gz", storage.Native(),
				NamedMesh{"Thalamus", Cube(0, 0, 0, 4)},
				NamedMesh{"Pallidum", Cube(1, 1, 1, 1)},
			)

			pairs, err := driver.RegionPairs(ctx, storage.PairQuery{ScanID: scan.ID, Level: storage.Native(), Predicate: storage.Intersects})
			Expect(err).NotTo(HaveOccurred())
			Expect(pairs).To(BeEmpty())

			pairs, err = driver.RegionPairs(ctx, storage.PairQuery{ScanID: scan.ID, Level: storage.Native(), Predicate: storage.Within, Epsilon: 1})
			Expect(err).NotTo(HaveOccurred())
			Expect(pairs).To(HaveLen(1))
			Expect(*pairs[0].Distance).To(BeNumerically("~", 1, 1e-9))
			Expect(pairs[0].Intersects).To(BeFalse())

			pairs, err = driver.RegionPairs(ctx, storage.PairQuery{ScanID: scan.ID, Level: storage.Native(), Predicate: storage.Within, Epsilon: 0.5})
			Expect(err).NotTo(HaveOccurred())
			Expect(pairs).To(BeEmpty())
		})

		It("matches touching regions at epsilon zero", func() {
			scan, _ := Seed(ctx, driver, "sub-01.nii.gz", storage.Native(),
				NamedMesh{"Caudate", Cube(0, 0, 0, 1)},
				NamedMesh{"Putamen", Cube(1, 0, 0, 1)},
			)

			pairs, err := driver.RegionPairs(ctx, storage.PairQuery{ScanID: scan.ID, Level: storage.Native(), Predicate: storage.Within})
			Expect(err).NotTo(HaveOccurred())
			Expect(pairs).To(HaveLen(1))
			Expect(*pairs[0].Distance).To(BeZero())
			Expect(pairs[0].Intersects).To(BeTrue())
		})
	})

	Describe("InTx", func() {
		It("commits when fn succeeds", func() {
			err := driver.InTx(ctx, func(repo storage.Repository) error {
				Seed(ctx, repo, "sub-01.nii.gz", storage.Native(), NamedMesh{"Caudate", Cube(0, 0, 0, 1)})
				return nil
			})
			Expect(err).NotTo(HaveOccurred())

			scan, err := driver.GetScan(ctx, "sub-01.nii.gz")
			Expect(err).NotTo(HaveOccurred())
			lods, err := driver.ListRegionLODs(ctx, scan.ID, storage.Native())
			Expect(err).NotTo(HaveOccurred())
			Expect(lods).To(HaveLen(1))
		})

		It("rolls back when fn fails", func() {
			boom := errors.New("boom")
			err := driver.InTx(ctx, func(repo storage.Repository) error {
				Seed(ctx, repo, "sub-01.nii.gz", storage.Native(), NamedMesh{"Caudate", Cube(0, 0, 0, 1)})
				return boom
			})
			Expect(err).To(MatchError(boom))

			_, err = driver.GetScan(ctx, "sub-01.nii.gz")
			var nf storage.NotFoundError
			Expect(errors.As(err, &nf)).To(BeTrue())
			_, err = driver.GetRegion(ctx, "Caudate")
			Expect(errors.As(err, &nf)).To(BeTrue())
		})
	})
}
