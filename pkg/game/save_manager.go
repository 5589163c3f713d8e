package game

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/quasilyte/gdata/v2"
	"gopkg.in/yaml.v3"

	"github.com/decker502/sanctuary/pkg/sanctuary"
)

// GraveRecord 持久化的墓碑
type GraveRecord struct {
	ID   string `yaml:"id"`
	Date string `yaml:"date"` // YYYY-MM-DD
}

// DailyHatchCount 某一天的孵化次数
type DailyHatchCount struct {
	Date  string `yaml:"date"` // YYYY-MM-DD
	Count int    `yaml:"count"`
}

// SanctuarySave 保护区存档
//
// 保存内容：
//   - 已解锁动物及其孵化日期
//   - 本次新孵化的动物列表
//   - 墓碑及其日期
//   - 待处理的动物（奖励系统写入，下次启动时放置）
//   - 每日孵化次数
type SanctuarySave struct {
	UnlockedAnimals []string          `yaml:"unlockedAnimals"`
	AnimalDates     map[string]string `yaml:"animalDates"`
	NewlyHatched    []string          `yaml:"newlyHatched"`
	Graves          []GraveRecord     `yaml:"graves"`
	PendingAnimal   string            `yaml:"pendingAnimal"`
	HatchCounts     []DailyHatchCount `yaml:"hatchCounts"`
}

func newSanctuarySave() *SanctuarySave {
	return &SanctuarySave{
		UnlockedAnimals: []string{},
		AnimalDates:     make(map[string]string),
		NewlyHatched:    []string{},
		Graves:          []GraveRecord{},
		HatchCounts:     []DailyHatchCount{},
	}
}

// 存储路径常量
// 每个字段单独存为一个属性，某一项损坏不影响其余数据
const (
	saveObject = "sanctuary"

	propUnlockedAnimals = "unlocked_animals"
	propAnimalDates     = "animal_dates"
	propNewlyHatched    = "newly_hatched"
	propGraves          = "unlocked_graves"
	propPendingAnimal   = "pending_animal"
	propHatchCounts     = "hatch_data"
)

// SaveManager 保存管理器
//
// 职责：
//   - 加载和保存保护区存档
//   - 维护解锁列表、日期、墓碑、待处理动物和孵化统计
//
// 架构说明：
//   - 数据持久化到 gdata（YAML 格式，与设置管理器保持一致）
//   - gdataManager 为 nil 时为降级模式，仅保存在内存中
//   - 不是并发安全的，由 SanctuaryService 串行调用
type SaveManager struct {
	gdataManager *gdata.Manager
	data         *SanctuarySave
}

// NewSaveManager 创建保存管理器并加载已有存档
//
// 参数：
//   - gdataManager: gdata 存储管理器，可为 nil（降级模式）
//
// 返回：
//   - *SaveManager: 保存管理器实例；损坏的字段使用默认值
func NewSaveManager(gdataManager *gdata.Manager) *SaveManager {
	sm := &SaveManager{
		gdataManager: gdataManager,
		data:         newSanctuarySave(),
	}

	if err := sm.Load(); err != nil {
		log.Printf("[SaveManager] Warning: %v (using defaults for damaged fields)", err)
	}
	return sm
}

// loadProp 读取并解析一个属性，不存在时保持 dst 不变
func loadProp[T any](gm *gdata.Manager, prop string, dst *T) error {
	if !gm.ObjectPropExists(saveObject, prop) {
		return nil
	}
	raw, err := gm.LoadObjectProp(saveObject, prop)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", prop, err)
	}
	if len(raw) == 0 {
		return nil
	}
	var v T
	if err := yaml.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("%w: %s: %v", sanctuary.ErrMalformedState, prop, err)
	}
	*dst = v
	return nil
}

// Load 从 gdata 加载存档
//
// 返回：
//   - error: 所有加载失败字段的合并错误；这些字段保持默认值
func (sm *SaveManager) Load() error {
	data := newSanctuarySave()
	if sm.gdataManager == nil {
		sm.data = data
		return nil
	}

	errs := []error{
		loadProp(sm.gdataManager, propUnlockedAnimals, &data.UnlockedAnimals),
		loadProp(sm.gdataManager, propAnimalDates, &data.AnimalDates),
		loadProp(sm.gdataManager, propNewlyHatched, &data.NewlyHatched),
		loadProp(sm.gdataManager, propGraves, &data.Graves),
		loadProp(sm.gdataManager, propPendingAnimal, &data.PendingAnimal),
		loadProp(sm.gdataManager, propHatchCounts, &data.HatchCounts),
	}

	// 解析结果可能包含 null
	if data.AnimalDates == nil {
		data.AnimalDates = make(map[string]string)
	}
	sm.data = data

	if err := errors.Join(errs...); err != nil {
		return err
	}
	log.Printf("[SaveManager] Loaded %d animals, %d graves", len(data.UnlockedAnimals), len(data.Graves))
	return nil
}

// Save 保存存档到 gdata
//
// 如果 gdataManager 为 nil，返回 nil（降级模式，不报错）
func (sm *SaveManager) Save() error {
	if sm.gdataManager == nil {
		return nil
	}

	props := []struct {
		name  string
		value interface{}
	}{
		{propUnlockedAnimals, sm.data.UnlockedAnimals},
		{propAnimalDates, sm.data.AnimalDates},
		{propNewlyHatched, sm.data.NewlyHatched},
		{propGraves, sm.data.Graves},
		{propPendingAnimal, sm.data.PendingAnimal},
		{propHatchCounts, sm.data.HatchCounts},
	}

	for _, p := range props {
		raw, err := yaml.Marshal(p.value)
		if err != nil {
			return fmt.Errorf("failed to marshal %s: %w", p.name, err)
		}
		if err := sm.gdataManager.SaveObjectProp(saveObject, p.name, raw); err != nil {
			return fmt.Errorf("failed to save %s: %w", p.name, err)
		}
	}
	return nil
}

// Data 返回存档的深拷贝
func (sm *SaveManager) Data() SanctuarySave {
	d := SanctuarySave{
		UnlockedAnimals: append([]string(nil), sm.data.UnlockedAnimals...),
		AnimalDates:     make(map[string]string, len(sm.data.AnimalDates)),
		NewlyHatched:    append([]string(nil), sm.data.NewlyHatched...),
		Graves:          append([]GraveRecord(nil), sm.data.Graves...),
		PendingAnimal:   sm.data.PendingAnimal,
		HatchCounts:     append([]DailyHatchCount(nil), sm.data.HatchCounts...),
	}
	for k, v := range sm.data.AnimalDates {
		d.AnimalDates[k] = v
	}
	return d
}

// GetUnlockedAnimals 获取已解锁动物列表（副本）
func (sm *SaveManager) GetUnlockedAnimals() []string {
	animals := make([]string, len(sm.data.UnlockedAnimals))
	copy(animals, sm.data.UnlockedAnimals)
	return animals
}

// UnlockAnimal 将动物加入解锁列表
//
// 返回：
//   - bool: 新加入时为 true，已存在时为 false
func (sm *SaveManager) UnlockAnimal(id string) bool {
	if containsString(sm.data.UnlockedAnimals, id) {
		return false
	}
	sm.data.UnlockedAnimals = append(sm.data.UnlockedAnimals, id)
	return true
}

// IsAnimalUnlocked 检查动物是否已解锁
func (sm *SaveManager) IsAnimalUnlocked(id string) bool {
	return containsString(sm.data.UnlockedAnimals, id)
}

// AnimalDate 获取动物的孵化日期
//
// 返回：
//   - time.Time: 日期（loc 时区的零点）
//   - bool: 没有记录或记录无法解析时为 false
func (sm *SaveManager) AnimalDate(id string, loc *time.Location) (time.Time, bool) {
	s, ok := sm.data.AnimalDates[id]
	if !ok {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(sanctuary.DateLayout, s, loc)
	if err != nil {
		log.Printf("[SaveManager] Warning: bad date %q for %s", s, id)
		return time.Time{}, false
	}
	return t, true
}

// SetAnimalDate 记录动物的孵化日期（已有记录不覆盖）
func (sm *SaveManager) SetAnimalDate(id string, date time.Time) {
	if _, ok := sm.data.AnimalDates[id]; ok {
		return
	}
	sm.data.AnimalDates[id] = date.Format(sanctuary.DateLayout)
}

// IsNewlyHatched 检查动物是否在新孵化列表中
func (sm *SaveManager) IsNewlyHatched(id string) bool {
	return containsString(sm.data.NewlyHatched, id)
}

// MarkNewlyHatched 将动物加入新孵化列表
func (sm *SaveManager) MarkNewlyHatched(id string) {
	if !containsString(sm.data.NewlyHatched, id) {
		sm.data.NewlyHatched = append(sm.data.NewlyHatched, id)
	}
}

// GetGraves 获取墓碑列表（副本）
func (sm *SaveManager) GetGraves() []GraveRecord {
	graves := make([]GraveRecord, len(sm.data.Graves))
	copy(graves, sm.data.Graves)
	return graves
}

// AddGrave 记录一个墓碑，重复ID被忽略
func (sm *SaveManager) AddGrave(id string, date time.Time) bool {
	for _, g := range sm.data.Graves {
		if g.ID == id {
			return false
		}
	}
	sm.data.Graves = append(sm.data.Graves, GraveRecord{ID: id, Date: date.Format(sanctuary.DateLayout)})
	return true
}

// GetPendingAnimal 获取待处理的动物，空字符串表示没有
func (sm *SaveManager) GetPendingAnimal() string {
	return sm.data.PendingAnimal
}

// SetPendingAnimal 设置待处理的动物
func (sm *SaveManager) SetPendingAnimal(id string) {
	sm.data.PendingAnimal = id
}

// TakePendingAnimal 取出并清除待处理的动物
func (sm *SaveManager) TakePendingAnimal() string {
	id := sm.data.PendingAnimal
	sm.data.PendingAnimal = ""
	return id
}

// GetHatchCounts 获取每日孵化次数（副本）
func (sm *SaveManager) GetHatchCounts() []DailyHatchCount {
	counts := make([]DailyHatchCount, len(sm.data.HatchCounts))
	copy(counts, sm.data.HatchCounts)
	return counts
}

// SetHatchCounts 替换每日孵化次数
func (sm *SaveManager) SetHatchCounts(counts []DailyHatchCount) {
	sm.data.HatchCounts = append(sm.data.HatchCounts[:0], counts...)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
